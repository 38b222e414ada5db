package droid

import (
	"context"
	"fmt"
)

// HandlerError wraps a failure raised by extension code during dispatch.
type HandlerError struct {
	Droid     string
	Extension string
	Handler   string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("droid %s: extension %s handler %q: %v", e.Droid, e.Extension, e.Handler, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// OnMessage dispatches a message event.
func (r *Runtime) OnMessage(ctx context.Context, ev Event) bool {
	ev.Type = EventMessage
	return r.dispatch(ctx, ev)
}

// OnReactionAdded dispatches a reaction_added event.
func (r *Runtime) OnReactionAdded(ctx context.Context, ev Event) bool {
	ev.Type = EventReactionAdded
	return r.dispatch(ctx, ev)
}

// OnReactionRemoved dispatches a reaction_removed event.
func (r *Runtime) OnReactionRemoved(ctx context.Context, ev Event) bool {
	ev.Type = EventReactionRemoved
	return r.dispatch(ctx, ev)
}

// dispatch runs the first listener of the event's type that intercepts the
// message. It reports whether a listener consumed the event; a listener
// whose handler fails still consumes it.
func (r *Runtime) dispatch(ctx context.Context, ev Event) bool {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	msg := ParseMessage(ev, r.adapter.BotUserID())

	r.mu.RLock()
	candidates := make([]*Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		if l.Type == ev.Type {
			candidates = append(candidates, l)
		}
	}
	r.mu.RUnlock()

	for _, l := range candidates {
		in, ok := l.Intercept(msg)
		if !ok {
			continue
		}
		req, res := r.exchange(ctx, in)
		if err := r.invoke(l, req, res); err != nil {
			r.logger.Error("handler failed", "error", err)
		}
		return true
	}
	return false
}

func (r *Runtime) exchange(ctx context.Context, in Interception) (*Request, *Response) {
	if b, ok := r.adapter.(RequestBuilder); ok {
		return b.BuildRequest(in), b.BuildResponse(ctx, in)
	}
	return NewRequest(r.name, in), NewResponse(ctx, r.adapter, in)
}

func (r *Runtime) invoke(l *Listener, req *Request, res *Response) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HandlerError{Droid: r.name, Extension: l.Extension, Handler: l.HandlerName, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if herr := l.Handler(req, res); herr != nil {
		return &HandlerError{Droid: r.name, Extension: l.Extension, Handler: l.HandlerName, Err: herr}
	}
	return nil
}
