package pipeline

import (
	"context"

	"fwlog/pkg/models"
)

// Source yields raw query requests. Pop returns nil, nil when nothing
// arrived within its block timeout.
type Source interface {
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}

// ExecFunc runs one validated request.
type ExecFunc func(ctx context.Context, req models.QueryRequest) ([]models.DeviceResult, error)

// ReplyWriter delivers responses to the requester's reply list.
type ReplyWriter interface {
	WriteReply(ctx context.Context, req models.QueryRequest, resp models.QueryResponse) error
	Close() error
}

// CallbackWriter posts responses to a callback URL.
type CallbackWriter interface {
	WriteCallback(ctx context.Context, url string, resp models.QueryResponse) error
	Close() error
}
