package api

import (
	"context"
	"sync"
)

// Pending is an in-flight request. Continuations registered with Done and
// Error run once, when the request settles; registering after settlement
// runs the matching continuation immediately.
type Pending struct {
	ch chan struct{}

	mu      sync.Mutex
	settled bool
	resp    *Response
	err     error
	onDone  []func(*Response)
	onError []func(error)
}

// Go sends the call on a new goroutine.
func (call *Call) Go(ctx context.Context) *Pending {
	p := &Pending{ch: make(chan struct{})}
	go func() {
		resp, err := call.Send(ctx)
		p.settle(resp, err)
	}()
	return p
}

// Go builds a call and sends it asynchronously. Only request construction
// errors are returned here; transport errors go to the Error continuation.
func (c *Client) Go(ctx context.Context, method, target string, body any) (*Pending, error) {
	call, err := c.NewCall(method, target, body)
	if err != nil {
		return nil, err
	}
	return call.Go(ctx), nil
}

// Done registers fn to receive the response on success.
func (p *Pending) Done(fn func(*Response)) *Pending {
	p.mu.Lock()
	if !p.settled {
		p.onDone = append(p.onDone, fn)
		p.mu.Unlock()
		return p
	}
	resp, err := p.resp, p.err
	p.mu.Unlock()

	if err == nil {
		fn(resp)
	}
	return p
}

// Error registers fn to receive the error on failure.
func (p *Pending) Error(fn func(error)) *Pending {
	p.mu.Lock()
	if !p.settled {
		p.onError = append(p.onError, fn)
		p.mu.Unlock()
		return p
	}
	err := p.err
	p.mu.Unlock()

	if err != nil {
		fn(err)
	}
	return p
}

// Wait blocks until the request settles and its continuations have run.
func (p *Pending) Wait() (*Response, error) {
	<-p.ch
	return p.resp, p.err
}

func (p *Pending) settle(resp *Response, err error) {
	p.mu.Lock()
	p.resp, p.err = resp, err
	p.settled = true
	onDone, onError := p.onDone, p.onError
	p.onDone, p.onError = nil, nil
	p.mu.Unlock()

	if err != nil {
		for _, fn := range onError {
			fn(err)
		}
	} else {
		for _, fn := range onDone {
			fn(resp)
		}
	}
	close(p.ch)
}
