// Package cluster owns the fleet of live droids and keeps the persisted
// registry aligned with them.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ziadkadry99/gynoid/internal/droid"
	"github.com/ziadkadry99/gynoid/internal/registry"
)

// Runtime is the part of a live droid the cluster drives.
type Runtime interface {
	Start(ctx context.Context) error
	Disconnect() error
	Connected() bool
	Extensions() []droid.Extension
	LoadExtension(name, repository string) error
	RemoveExtension(name string) bool
	Reload(keys map[string]string, extensions []droid.Extension) error
}

// RuntimeFactory builds a runtime for a definition. keys is the merged
// configuration visible to the droid's extensions.
type RuntimeFactory func(def registry.Droid, keys map[string]string) (Runtime, error)

// Extender fetches extension code into the install directory.
type Extender interface {
	Clone(ctx context.Context, url, name string) error
	InstallDependencies(ctx context.Context, name string) error
}

// Auditor records cluster mutations.
type Auditor interface {
	Record(ctx context.Context, action, droid, summary string)
}

// Progress reports start-up progress.
type Progress interface {
	Start(total int)
	Update(current int, message string)
	Finish()
}

// Audit actions.
const (
	ActionDroidStarted       = "droid_started"
	ActionDroidRemoved       = "droid_removed"
	ActionDroidDisconnected  = "droid_disconnected"
	ActionDroidReloaded      = "droid_reloaded"
	ActionExtensionInstalled = "extension_installed"
	ActionExtensionRemoved   = "extension_removed"
	ActionKeyAdded           = "key_added"
	ActionKeyRemoved         = "key_removed"
)

// Option configures a Cluster.
type Option func(*Cluster)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Cluster) { c.logger = l } }

// WithAuditor records every mutation through a. It may be given more than
// once.
func WithAuditor(a Auditor) Option { return func(c *Cluster) { c.auditors = append(c.auditors, a) } }

// WithProgress reports StartFromRegistry progress through p.
func WithProgress(p Progress) Option { return func(c *Cluster) { c.progress = p } }

// Cluster is the orchestrator. It is safe for concurrent use, but callers
// must not install the same extension on the same droid concurrently.
type Cluster struct {
	store      *registry.Store
	extender   Extender
	newRuntime RuntimeFactory
	logger     *slog.Logger
	auditors   []Auditor
	progress   Progress

	mu       sync.Mutex
	runtimes map[string]Runtime
	starting map[string]bool
}

// New builds a cluster over store.
func New(store *registry.Store, extender Extender, newRuntime RuntimeFactory, opts ...Option) *Cluster {
	c := &Cluster{
		store:      store,
		extender:   extender,
		newRuntime: newRuntime,
		logger:     slog.Default(),
		runtimes:   make(map[string]Runtime),
		starting:   make(map[string]bool),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Store returns the registry.
func (c *Cluster) Store() *registry.Store { return c.store }

func (c *Cluster) audit(ctx context.Context, action, droidName, summary string) {
	for _, a := range c.auditors {
		a.Record(ctx, action, droidName, summary)
	}
}

// Runtime returns the live runtime of a droid.
func (c *Cluster) Runtime(id string) (Runtime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rt, ok := c.runtimes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rt, nil
}

// StartFromRegistry starts every persisted droid. A droid that fails to
// start is logged and skipped. It returns how many droids started.
func (c *Cluster) StartFromRegistry(ctx context.Context) int {
	defs := c.store.Droids()
	if c.progress != nil {
		c.progress.Start(len(defs))
		defer c.progress.Finish()
	}

	started := 0
	for i, def := range defs {
		if c.progress != nil {
			c.progress.Update(i, "starting "+def.Name)
		}
		if err := c.StartDroid(ctx, def); err != nil {
			c.logger.Error("unable to start droid", "droid", def.Name, "error", err)
			continue
		}
		started++
	}
	if c.progress != nil {
		c.progress.Update(len(defs), fmt.Sprintf("%d/%d droids started", started, len(defs)))
	}
	return started
}

// StartDroid builds, records and connects a droid. An empty token, nil
// extension list or nil key map falls back to the persisted definition.
// On failure the droid is not registered and the registry is left as it
// was.
func (c *Cluster) StartDroid(ctx context.Context, def registry.Droid) error {
	name := def.Name
	if name == "" {
		return errors.New("droid definition has no name")
	}

	c.mu.Lock()
	if _, live := c.runtimes[name]; live || c.starting[name] {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateDroid, name)
	}
	c.starting[name] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.starting, name)
		c.mu.Unlock()
	}()

	prev, hadPrev := c.store.Droid(name)
	if hadPrev {
		if def.Token == "" {
			def.Token = prev.Token
		}
		if def.Extensions == nil {
			def.Extensions = prev.Extensions
		}
		if def.Keys == nil {
			def.Keys = prev.Keys
		}
	}
	if def.Token == "" {
		return fmt.Errorf("starting droid %s: %w", name, ErrMissingToken)
	}

	restore := func() {
		if hadPrev {
			c.store.PutDroid(prev)
		} else {
			c.store.DeleteDroid(name)
		}
	}

	c.store.PutDroid(def)
	rt, err := c.newRuntime(def, c.store.Keys(name))
	if err != nil {
		restore()
		return fmt.Errorf("building droid %s: %w", name, err)
	}
	if err := c.store.Save(); err != nil {
		restore()
		return fmt.Errorf("saving droid %s: %w", name, err)
	}
	if err := rt.Start(ctx); err != nil {
		restore()
		if serr := c.store.Save(); serr != nil {
			c.logger.Error("unable to save registry", "error", serr)
		}
		return err
	}

	c.mu.Lock()
	c.runtimes[name] = rt
	c.mu.Unlock()

	c.logger.Info("droid started", "droid", name, "extensions", len(def.Extensions))
	c.audit(ctx, ActionDroidStarted, name, fmt.Sprintf("Droid %s started with %d extension(s)", name, len(def.Extensions)))
	return nil
}

// DisconnectDroid closes a live droid's connection. The runtime stays
// registered.
func (c *Cluster) DisconnectDroid(ctx context.Context, id string) error {
	rt, err := c.Runtime(id)
	if err != nil {
		return err
	}
	if err := rt.Disconnect(); err != nil {
		return err
	}
	c.audit(ctx, ActionDroidDisconnected, id, "Droid "+id+" disconnected")
	return nil
}

// RemoveDroid disconnects a droid, discards its runtime and deletes its
// definition. Removal proceeds when disconnecting fails, and removing an
// unknown droid succeeds.
func (c *Cluster) RemoveDroid(ctx context.Context, id string) error {
	c.mu.Lock()
	rt, live := c.runtimes[id]
	delete(c.runtimes, id)
	c.mu.Unlock()

	if live {
		if err := rt.Disconnect(); err != nil {
			c.logger.Error("unable to disconnect droid", "droid", id, "error", err)
		}
	}

	c.store.DeleteDroid(id)
	if err := c.store.Save(); err != nil {
		return fmt.Errorf("saving registry: %w", err)
	}
	c.logger.Info("droid removed", "droid", id)
	c.audit(ctx, ActionDroidRemoved, id, "Droid "+id+" removed")
	return nil
}

// ReloadDroid re-parses every persisted extension of a droid with the
// current keys, including ones that failed to load earlier.
func (c *Cluster) ReloadDroid(ctx context.Context, id string) error {
	rt, err := c.Runtime(id)
	if err != nil {
		return err
	}
	def, ok := c.store.Droid(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	exts := make([]droid.Extension, 0, len(def.Extensions))
	for _, e := range def.Extensions {
		exts = append(exts, droid.Extension{Name: e.Name, Repository: e.Repository})
	}
	if err := rt.Reload(c.store.Keys(id), exts); err != nil {
		return fmt.Errorf("reloading droid %s: %w", id, err)
	}
	c.audit(ctx, ActionDroidReloaded, id, "Droid "+id+" reloaded")
	return nil
}

// InstallExtension fetches an extension and loads it into a droid. An
// extension with the same name is removed first. A failing step aborts
// the rest; an extension removed by this call is not restored.
func (c *Cluster) InstallExtension(ctx context.Context, repository, droidID string) (Repository, error) {
	rt, err := c.Runtime(droidID)
	if err != nil {
		return Repository{}, err
	}
	repo, err := ResolveRepository(repository)
	if err != nil {
		return Repository{}, err
	}
	def, ok := c.store.Droid(droidID)
	if !ok {
		return Repository{}, fmt.Errorf("%w: %s", ErrNotFound, droidID)
	}

	logger := c.logger.With("droid", droidID, "extension", repo.Name)
	if def.HasExtension(repo.Name) {
		logger.Info("reinstalling extension")
		if err := c.RemoveExtension(ctx, repo.Name, droidID); err != nil {
			return repo, err
		}
	}

	if err := c.extender.Clone(ctx, repo.URL, repo.Name); err != nil {
		return repo, fmt.Errorf("cloning %s: %w", repo.URL, err)
	}
	if err := c.extender.InstallDependencies(ctx, repo.Name); err != nil {
		return repo, fmt.Errorf("installing dependencies of %s: %w", repo.Name, err)
	}
	if err := rt.LoadExtension(repo.Name, repo.URL); err != nil {
		return repo, err
	}
	if err := c.store.AppendExtension(droidID, registry.Extension{Name: repo.Name, Repository: repo.URL}); err != nil {
		return repo, err
	}
	if err := c.store.Save(); err != nil {
		return repo, fmt.Errorf("saving registry: %w", err)
	}

	logger.Info("extension installed", "repository", repo.URL)
	c.audit(ctx, ActionExtensionInstalled, droidID, fmt.Sprintf("Extension %s installed from %s", repo.Name, repo.URL))
	return repo, nil
}

// RemoveExtension unloads an installed extension and forgets it.
func (c *Cluster) RemoveExtension(ctx context.Context, name, droidID string) error {
	rt, err := c.Runtime(droidID)
	if err != nil {
		return err
	}
	def, ok := c.store.Droid(droidID)
	if !ok || !def.HasExtension(name) {
		return fmt.Errorf("%w: %s on %s", ErrExtensionNotFound, name, droidID)
	}

	rt.RemoveExtension(name)
	if _, err := c.store.RemoveExtension(droidID, name); err != nil {
		return err
	}
	if err := c.store.Save(); err != nil {
		return fmt.Errorf("saving registry: %w", err)
	}

	c.logger.Info("extension removed", "droid", droidID, "extension", name)
	c.audit(ctx, ActionExtensionRemoved, droidID, "Extension "+name+" removed")
	return nil
}

// ListExtensions returns a droid's persisted extensions.
func (c *Cluster) ListExtensions(droidID string) ([]registry.Extension, error) {
	def, ok := c.store.Droid(droidID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, droidID)
	}
	return def.Extensions, nil
}

// AddKey sets a configuration key on a droid.
func (c *Cluster) AddKey(ctx context.Context, droidID, key, value string) error {
	if err := c.store.AddKey(droidID, key, value); err != nil {
		return err
	}
	c.audit(ctx, ActionKeyAdded, droidID, "Key "+key+" added")
	return nil
}

// RemoveKey deletes a configuration key from a droid.
func (c *Cluster) RemoveKey(ctx context.Context, droidID, key string) error {
	if err := c.store.RemoveKey(droidID, key); err != nil {
		return err
	}
	c.audit(ctx, ActionKeyRemoved, droidID, "Key "+key+" removed")
	return nil
}

// ListKeys returns the key names visible to a droid.
func (c *Cluster) ListKeys(droidID string) ([]string, error) {
	return c.store.ListKeys(droidID)
}

// Status describes one registered droid.
type Status struct {
	Name       string               `json:"name"`
	Live       bool                 `json:"live"`
	Connected  bool                 `json:"connected"`
	Extensions []registry.Extension `json:"extensions"`
}

// Droids lists every registered droid with its live state.
func (c *Cluster) Droids() []Status {
	defs := c.store.Droids()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Status, 0, len(defs))
	for _, d := range defs {
		s := Status{Name: d.Name, Extensions: d.Extensions}
		if rt, ok := c.runtimes[d.Name]; ok {
			s.Live = true
			s.Connected = rt.Connected()
		}
		out = append(out, s)
	}
	return out
}

// Shutdown disconnects every live droid. Definitions are kept.
func (c *Cluster) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	runtimes := make(map[string]Runtime, len(c.runtimes))
	for name, rt := range c.runtimes {
		runtimes[name] = rt
	}
	c.runtimes = make(map[string]Runtime)
	c.mu.Unlock()

	var errs []error
	for name, rt := range runtimes {
		if err := rt.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("droid %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
