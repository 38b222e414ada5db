// Package droid is the runtime of a single bot identity: it owns the
// listeners parsed from installed extensions, routes platform events to
// them and keeps conversational context.
package droid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sync"
)

// Extension identifies an extension loaded into a runtime.
type Extension struct {
	Name       string `json:"name"`
	Repository string `json:"repository"`
}

// Options configures a Runtime.
type Options struct {
	Name       string
	Adapter    Adapter
	Catalog    *Catalog
	InstallDir string
	Keys       map[string]string
	Logger     *slog.Logger
}

// Runtime is one live droid.
//
// Events are dispatched one at a time. Listener and context state has its
// own lock so handlers may call back into the runtime while dispatching.
type Runtime struct {
	name       string
	adapter    Adapter
	catalog    *Catalog
	installDir string
	logger     *slog.Logger
	contexts   *ContextStore
	callbacks  *Callbacks

	dispatchMu sync.Mutex

	mu         sync.RWMutex
	listeners  []*Listener
	extensions []Extension
	keys       map[string]string
	connected  bool
}

// New builds a runtime. It does not connect.
func New(opts Options) (*Runtime, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("droid %s: missing adapter", opts.Name)
	}
	name := opts.Name
	if name == "" {
		name = "Anonymous"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		name:       name,
		adapter:    opts.Adapter,
		catalog:    opts.Catalog,
		installDir: opts.InstallDir,
		logger:     logger.With("droid", name),
		contexts:   NewContextStore(),
		callbacks:  newCallbacks(),
		keys:       maps.Clone(opts.Keys),
	}, nil
}

// Name returns the droid name.
func (r *Runtime) Name() string { return r.name }

// Adapter returns the platform connection.
func (r *Runtime) Adapter() Adapter { return r.adapter }

// Start connects the adapter and begins receiving events.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.adapter.Start(ctx, r); err != nil {
		return fmt.Errorf("starting droid %s: %w", r.name, err)
	}
	r.mu.Lock()
	r.connected = true
	r.mu.Unlock()
	r.logger.Info("droid connected")
	return nil
}

// Disconnect closes the adapter connection.
func (r *Runtime) Disconnect() error {
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()
	if err := r.adapter.Disconnect(); err != nil {
		return fmt.Errorf("disconnecting droid %s: %w", r.name, err)
	}
	r.logger.Info("droid disconnected")
	return nil
}

// Connected reports whether Start succeeded, Disconnect has not been
// called since and the adapter has not lost its connection.
func (r *Runtime) Connected() bool {
	r.mu.RLock()
	connected := r.connected
	r.mu.RUnlock()
	if cr, ok := r.adapter.(ConnectionReporter); ok && connected {
		return cr.Connected()
	}
	return connected
}

// Extensions returns the loaded extensions in load order.
func (r *Runtime) Extensions() []Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.extensions)
}

// Listeners returns the current listeners in registration order.
func (r *Runtime) Listeners() []*Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.listeners)
}

// Reset drops every listener.
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = nil
}

// AddListener builds one listener from an action and appends it.
func (r *Runtime) AddListener(extension string, a Action, core HandlerTable) error {
	l, err := a.Build(extension, core)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
	return nil
}

// ParseDefinition reads a definition file and appends its listeners.
func (r *Runtime) ParseDefinition(path string) error {
	def, err := ReadDefinition(path)
	if err != nil {
		return err
	}
	listeners, err := r.build(def)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, listeners...)
	return nil
}

// LoadExtension parses the extension installed under the install
// directory and appends its listeners, replacing any it already had.
func (r *Runtime) LoadExtension(name, repository string) error {
	r.callbacks.drop(name)
	listeners, err := r.loadListeners(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = slices.DeleteFunc(r.listeners, func(l *Listener) bool { return l.Extension == name })
	r.listeners = append(r.listeners, listeners...)
	r.extensions = slices.DeleteFunc(r.extensions, func(e Extension) bool { return e.Name == name })
	r.extensions = append(r.extensions, Extension{Name: name, Repository: repository})
	r.logger.Info("extension loaded", "extension", name, "listeners", len(listeners))
	return nil
}

// RemoveExtension drops an extension and its listeners. It reports whether
// the extension was loaded.
func (r *Runtime) RemoveExtension(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.extensions)
	r.extensions = slices.DeleteFunc(r.extensions, func(e Extension) bool { return e.Name == name })
	r.listeners = slices.DeleteFunc(r.listeners, func(l *Listener) bool { return l.Extension == name })
	removed := len(r.extensions) != before
	r.callbacks.drop(name)
	if removed {
		r.logger.Info("extension removed", "extension", name)
	}
	return removed
}

// Reload replaces the installed set with exts and rebuilds every listener
// with keys. Extensions that fail to parse stay installed without
// listeners and their errors are returned together, so a later Reload can
// recover them once the missing keys are set.
func (r *Runtime) Reload(keys map[string]string, exts []Extension) error {
	exts = slices.Clone(exts)
	r.mu.Lock()
	r.keys = maps.Clone(keys)
	r.extensions = exts
	r.mu.Unlock()
	r.callbacks.reset()

	var (
		listeners []*Listener
		errs      []error
	)
	for _, ext := range exts {
		ls, err := r.loadListeners(ext.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		listeners = append(listeners, ls...)
	}

	r.mu.Lock()
	r.listeners = listeners
	r.mu.Unlock()
	r.logger.Info("droid reloaded", "extensions", len(exts), "listeners", len(listeners))
	return errors.Join(errs...)
}

func (r *Runtime) loadListeners(name string) ([]*Listener, error) {
	path, err := FindDefinition(filepath.Join(r.installDir, name))
	if err != nil {
		return nil, fmt.Errorf("loading extension %s: %w", name, err)
	}
	def, err := ReadDefinition(path)
	if err != nil {
		return nil, fmt.Errorf("loading extension %s: %w", name, err)
	}
	def.Name = name
	listeners, err := r.build(def)
	if err != nil {
		return nil, fmt.Errorf("loading extension %s: %w", name, err)
	}
	return listeners, nil
}

func (r *Runtime) build(def *Definition) ([]*Listener, error) {
	r.mu.RLock()
	keys := maps.Clone(r.keys)
	r.mu.RUnlock()

	core, err := r.catalog.Build(Env{
		Droid:     r.name,
		Extension: def.Name,
		Keys:      keys,
		Contexts:  r.contexts,
		Logger:    r.logger.With("extension", def.Name),
		callbacks: r.callbacks,
	})
	if err != nil {
		return nil, err
	}
	return def.Listeners(core)
}

// Contexts returns the droid's context store.
func (r *Runtime) Contexts() *ContextStore { return r.contexts }

// SaveContext stores req and res for a follow-up event.
func (r *Runtime) SaveContext(req *Request, res *Response) { r.contexts.Save(req, res) }

// GetContext returns the context stored under id.
func (r *Runtime) GetContext(id string) (Context, bool) { return r.contexts.Get(id) }

// GetContextFromPayload returns the context of an interactive callback.
func (r *Runtime) GetContextFromPayload(p Payload) (Context, bool) {
	return r.contexts.FromPayload(p)
}
