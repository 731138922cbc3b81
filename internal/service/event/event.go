package event

import (
	"context"
)

// Emitter records a domain event for asynchronous publication
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

// Nop drops every event
type Nop struct{}

func (Nop) Emit(ctx context.Context, eventType string, payload interface{}) error { return nil }
