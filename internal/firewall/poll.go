package vendor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fwlog/internal/logger"
	"fwlog/pkg/models"
)

// PollPolicy bounds a poll loop: a fixed interval between checks and a
// wall-clock deadline for the whole loop.
type PollPolicy struct {
	Interval time.Duration
	Deadline time.Duration
}

// DefaultPollPolicy polls once a second for at most 20 seconds.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: time.Second, Deadline: 20 * time.Second}
}

// CheckFunc performs one status request. It returns the observed status and
// the raw response body.
type CheckFunc func(ctx context.Context) (models.JobStatus, string, error)

// Poll calls check until job reaches a terminal status. DONE returns nil;
// FAILED returns JobFailed; an elapsed deadline returns JobTimeout; a
// cancelled ctx stops at the next tick with a TransportError. Error bodies
// carry the last captured response.
func Poll(ctx context.Context, policy PollPolicy, job *models.Job, check CheckFunc) error {
	if policy.Interval <= 0 || policy.Deadline <= 0 {
		d := DefaultPollPolicy()
		if policy.Interval <= 0 {
			policy.Interval = d.Interval
		}
		if policy.Deadline <= 0 {
			policy.Deadline = d.Deadline
		}
	}
	pctx, cancel := context.WithTimeout(ctx, policy.Deadline)
	defer cancel()

	lastBody := ""
	timeout := func() error {
		job.Observe(models.JobTimeout)
		return models.NewError(models.KindJobTimeout, "poll",
			fmt.Errorf("job %s not finished after %s", job.ID, policy.Deadline)).WithBody(lastBody)
	}
	cancelled := func() error {
		return models.NewError(models.KindTransportError, "poll", ctx.Err()).WithBody(lastBody)
	}

	for {
		status, body, err := check(pctx)
		if body != "" {
			lastBody = body
		}
		if err != nil {
			if ctx.Err() != nil {
				return cancelled()
			}
			if errors.Is(pctx.Err(), context.DeadlineExceeded) {
				return timeout()
			}
			return err
		}

		job.Observe(status)
		logger.Debugf("job %s status %s", job.ID, job.Status)
		switch job.Status {
		case models.JobDone:
			return nil
		case models.JobFailed:
			return models.NewError(models.KindJobFailed, "poll",
				fmt.Errorf("job %s failed", job.ID)).WithBody(lastBody)
		}

		t := time.NewTimer(policy.Interval)
		select {
		case <-pctx.Done():
			t.Stop()
			if ctx.Err() != nil {
				return cancelled()
			}
			return timeout()
		case <-t.C:
		}
	}
}
