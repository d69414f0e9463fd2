package redisreply

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fwlog/pkg/models"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "fwlog:reply:r1", Key("fwlog:reply:", models.QueryRequest{ID: "r1"}))
	assert.Equal(t, "console:42", Key("fwlog:reply:", models.QueryRequest{ID: "r1", ReplyTo: " console:42 "}))
}

func TestNewWriterRejectsNilClient(t *testing.T) {
	_, err := NewWriter(nil, Config{})
	assert.Error(t, err)
}
