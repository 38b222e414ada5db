package droid

import (
	"fmt"
	"log/slog"
	"sync"
)

// HandlerFunc handles one intercepted event.
type HandlerFunc func(req *Request, res *Response) error

// HandlerTable is an extension's set of named handlers.
type HandlerTable interface {
	Handler(name string) (HandlerFunc, bool)
}

// Handlers is a HandlerTable backed by a map.
type Handlers map[string]HandlerFunc

// Handler implements HandlerTable.
func (h Handlers) Handler(name string) (HandlerFunc, bool) {
	f, ok := h[name]
	return f, ok
}

// Env is what an extension factory gets to build its handlers.
type Env struct {
	Droid     string
	Extension string
	Keys      map[string]string
	Contexts  *ContextStore
	Logger    *slog.Logger

	callbacks *Callbacks
}

// On routes interactive submissions carrying callbackID to fn. A later
// registration of the same id replaces the earlier one.
func (e Env) On(callbackID string, fn CallbackFunc) {
	if e.callbacks == nil {
		return
	}
	e.callbacks.on(e.Extension, callbackID, fn)
}

// Factory builds an extension's handler table.
type Factory func(env Env) (HandlerTable, error)

// Catalog maps extension names to the factories of compiled-in handler
// code. Definitions loaded from disk resolve their handler names here.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a name twice is a programming error.
func (c *Catalog) Register(name string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.factories[name]; dup {
		panic(fmt.Sprintf("droid: extension %q registered twice", name))
	}
	c.factories[name] = f
}

// Build returns the handler table for env.Extension, or nil when no
// factory is registered for it. Definitions made only of reply actions
// need no handlers.
func (c *Catalog) Build(env Env) (HandlerTable, error) {
	if c == nil {
		return nil, nil
	}
	c.mu.RLock()
	f, ok := c.factories[env.Extension]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	core, err := f(env)
	if err != nil {
		return nil, fmt.Errorf("building extension %s: %w", env.Extension, err)
	}
	return core, nil
}
