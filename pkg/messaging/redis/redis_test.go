package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	_, err := NewRedisBroker(context.Background(), Config{URL: "not-a-redis-url"}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}
