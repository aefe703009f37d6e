package api

import (
	"context"
	"time"
)

// RequestInfo describes an outgoing HTTP request.
type RequestInfo struct {
	Method  string
	URL     string
	HasBody bool
}

// RequestResult describes the outcome of a single HTTP request.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	Error      error
}

// Hooks observes requests issued by the client.
// Implementations must be safe for concurrent use.
type Hooks interface {
	// OnRequestStart is called before the request is sent. The returned
	// context is used for the request.
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context

	// OnRequestEnd is called once the request has completed or failed.
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
}

// NoopHooks is a Hooks implementation that does nothing.
type NoopHooks struct{}

func (NoopHooks) OnRequestStart(ctx context.Context, _ RequestInfo) context.Context { return ctx }
func (NoopHooks) OnRequestEnd(context.Context, RequestInfo, RequestResult) {}
