// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// Service errors.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRedirectLoop   = errors.New("redirect chain loops")
)

// IndexQueue enqueues records for asynchronous search indexing.
// Implementations must tolerate being called on the write path: a
// full queue is reported, not blocked on.
type IndexQueue interface {
	EnqueueIndex(ctx context.Context, e model.Entity, pid string) error
	EnqueueDelete(ctx context.Context, e model.Entity, pid string) error
}

// noopQueue drops every message. Used when indexing is disabled.
type noopQueue struct{}

func (noopQueue) EnqueueIndex(context.Context, model.Entity, string) error  { return nil }
func (noopQueue) EnqueueDelete(context.Context, model.Entity, string) error { return nil }

// NewNoopQueue returns a queue that discards all messages.
func NewNoopQueue() IndexQueue {
	return noopQueue{}
}
