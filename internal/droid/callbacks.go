package droid

import (
	"context"
	"fmt"
	"sync"
)

// Submission is an interactive callback such as a submitted dialog.
type Submission struct {
	Type        string
	CallbackID  string
	User        User
	Channel     Channel
	Values      map[string]string
	State       string
	TriggerID   string
	ResponseURL string
}

// Payload returns the user and channel the submission came from.
func (s Submission) Payload() Payload {
	return Payload{UserID: s.User.ID, ChannelID: s.Channel.ID}
}

// CallbackFunc handles one submission.
type CallbackFunc func(ctx context.Context, s Submission) error

type callback struct {
	extension string
	fn        CallbackFunc
}

// Callbacks routes submissions to the extension that registered their
// callback id.
type Callbacks struct {
	mu   sync.RWMutex
	byID map[string]callback
}

func newCallbacks() *Callbacks {
	return &Callbacks{byID: make(map[string]callback)}
}

func (c *Callbacks) on(extension, id string, fn CallbackFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[id] = callback{extension: extension, fn: fn}
}

func (c *Callbacks) get(id string) (callback, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cb, ok := c.byID[id]
	return cb, ok
}

// drop forgets every callback registered by extension.
func (c *Callbacks) drop(extension string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cb := range c.byID {
		if cb.extension == extension {
			delete(c.byID, id)
		}
	}
}

func (c *Callbacks) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.byID)
}

// OnSubmission runs the callback registered for s.CallbackID. It reports
// whether one was found; a failing callback still counts as handled.
func (r *Runtime) OnSubmission(ctx context.Context, s Submission) bool {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	cb, ok := r.callbacks.get(s.CallbackID)
	if !ok {
		r.logger.Debug("no callback registered", "callback_id", s.CallbackID)
		return false
	}
	if err := r.invokeCallback(ctx, cb, s); err != nil {
		r.logger.Error("callback failed", "error", err)
	}
	return true
}

func (r *Runtime) invokeCallback(ctx context.Context, cb callback, s Submission) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HandlerError{Droid: r.name, Extension: cb.extension, Handler: s.CallbackID, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if cerr := cb.fn(ctx, s); cerr != nil {
		return &HandlerError{Droid: r.name, Extension: cb.extension, Handler: s.CallbackID, Err: cerr}
	}
	return nil
}
