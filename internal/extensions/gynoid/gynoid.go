// Package gynoid is the builtin management extension. It lets a chat user
// register droids, install extensions and manage keys by talking to the
// management droid.
package gynoid

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ziadkadry99/gynoid/internal/audit"
	"github.com/ziadkadry99/gynoid/internal/cluster"
	"github.com/ziadkadry99/gynoid/internal/droid"
	"github.com/ziadkadry99/gynoid/internal/registry"
)

// Name is the extension name and its install directory.
const Name = "gynoid-droid"

//go:embed droid.yaml
var files embed.FS

// Files returns the extension's definition for the builtin extender.
func Files() fs.FS { return files }

// Fleet is the cluster surface the extension drives.
type Fleet interface {
	StartDroid(ctx context.Context, def registry.Droid) error
	RemoveDroid(ctx context.Context, id string) error
	ReloadDroid(ctx context.Context, id string) error
	InstallExtension(ctx context.Context, repository, droidID string) (cluster.Repository, error)
	RemoveExtension(ctx context.Context, name, droidID string) error
	ListExtensions(droidID string) ([]registry.Extension, error)
	Droids() []cluster.Status
	AddKey(ctx context.Context, droidID, key, value string) error
	RemoveKey(ctx context.Context, droidID, key string) error
	ListKeys(droidID string) ([]string, error)
}

// Option configures the extension.
type Option func(*extension)

// WithSpawn replaces how long-running commands are started. The default
// runs them on a new goroutine.
func WithSpawn(spawn func(func())) Option {
	return func(e *extension) { e.spawn = spawn }
}

type extension struct {
	fleet Fleet
	spawn func(func())
}

// Register adds the extension's factory to catalog.
func Register(catalog *droid.Catalog, fleet Fleet, opts ...Option) {
	e := &extension{fleet: fleet, spawn: func(f func()) { go f() }}
	for _, o := range opts {
		o(e)
	}
	catalog.Register(Name, func(droid.Env) (droid.HandlerTable, error) {
		return e.handlers(), nil
	})
}

func (e *extension) handlers() droid.Handlers {
	return droid.Handlers{
		"register":        e.register,
		"unregister":      e.unregister,
		"extend":          e.extend,
		"reload":          e.reload,
		"removeExtension": e.removeExtension,
		"listExtensions":  e.listExtensions,
		"listDroids":      e.listDroids,
		"addKey":          e.addKey,
		"removeKey":       e.removeKey,
		"listKeys":        e.listKeys,
		"help":            help,
	}
}

func replyError(res *droid.Response, err error) error {
	return res.Text("Error: " + err.Error())
}

// actor tags cluster mutations with the chat user who asked for them.
func actor(req *droid.Request) context.Context {
	return audit.WithActor(context.Background(), req.Message.From.Name)
}

// async runs op in the background and reports its failure in chat.
func (e *extension) async(req *droid.Request, res *droid.Response, op func(ctx context.Context) error) {
	ctx := actor(req)
	e.spawn(func() {
		if err := op(ctx); err != nil {
			replyError(res, err)
		}
	})
}

func (e *extension) register(req *droid.Request, res *droid.Response) error {
	name, token := req.Param("droid"), req.Param("token")
	if err := res.Text("Registering Droid..."); err != nil {
		return err
	}
	e.async(req, res, func(ctx context.Context) error {
		if err := e.fleet.StartDroid(ctx, registry.Droid{Name: name, Token: token}); err != nil {
			return err
		}
		return res.Textf("Droid %s successfully registered", name)
	})
	return nil
}

// unregister runs off the event loop: removing the droid that received the
// command disconnects the loop delivering it.
func (e *extension) unregister(req *droid.Request, res *droid.Response) error {
	name := req.Param("droid")
	e.async(req, res, func(ctx context.Context) error {
		if err := e.fleet.RemoveDroid(ctx, name); err != nil {
			return err
		}
		return res.Textf("Droid %s successfully unregistered", name)
	})
	return nil
}

func (e *extension) extend(req *droid.Request, res *droid.Response) error {
	name, repo := req.Param("droid"), unwrapLink(req.Param("repo"))
	if err := res.Text("Extending Droid..."); err != nil {
		return err
	}
	e.async(req, res, func(ctx context.Context) error {
		if _, err := e.fleet.InstallExtension(ctx, repo, name); err != nil {
			return err
		}
		if err := res.Textf("Droid %s successfully extended", name); err != nil {
			return err
		}
		if err := e.fleet.ReloadDroid(ctx, name); err != nil {
			return err
		}
		return res.Textf("Droid %s successfully reloaded", name)
	})
	return nil
}

func (e *extension) reload(req *droid.Request, res *droid.Response) error {
	name := req.Param("droid")
	e.async(req, res, func(ctx context.Context) error {
		if err := e.fleet.ReloadDroid(ctx, name); err != nil {
			return err
		}
		return res.Textf("Droid %s successfully reloaded", name)
	})
	return nil
}

func (e *extension) removeExtension(req *droid.Request, res *droid.Response) error {
	ext, name := req.Param("extension"), req.Param("droid")
	if err := e.fleet.RemoveExtension(actor(req), ext, name); err != nil {
		return replyError(res, err)
	}
	return res.Textf("Extension %s removed from %s", ext, name)
}

func (e *extension) listExtensions(req *droid.Request, res *droid.Response) error {
	exts, err := e.fleet.ListExtensions(req.Param("droid"))
	if err != nil {
		return replyError(res, err)
	}
	if len(exts) == 0 {
		return res.Text("No extensions installed")
	}
	lines := make([]string, len(exts))
	for i, x := range exts {
		lines[i] = fmt.Sprintf("- %s (%s)", x.Name, x.Repository)
	}
	return res.Text(strings.Join(lines, "\n"))
}

func (e *extension) listDroids(_ *droid.Request, res *droid.Response) error {
	droids := e.fleet.Droids()
	if len(droids) == 0 {
		return res.Text("No droids registered")
	}
	lines := make([]string, len(droids))
	for i, d := range droids {
		state := "offline"
		if d.Connected {
			state = "online"
		}
		lines[i] = fmt.Sprintf("- %s (%s, %d extensions)", d.Name, state, len(d.Extensions))
	}
	return res.Text(strings.Join(lines, "\n"))
}

func (e *extension) addKey(req *droid.Request, res *droid.Response) error {
	err := e.fleet.AddKey(actor(req), req.Param("droid"), req.Param("key"), req.Param("value"))
	if err != nil {
		return replyError(res, err)
	}
	return res.Text("Key added")
}

func (e *extension) removeKey(req *droid.Request, res *droid.Response) error {
	if err := e.fleet.RemoveKey(actor(req), req.Param("droid"), req.Param("key")); err != nil {
		return replyError(res, err)
	}
	return res.Text("Key was removed")
}

func (e *extension) listKeys(req *droid.Request, res *droid.Response) error {
	keys, err := e.fleet.ListKeys(req.Param("droid"))
	if err != nil {
		return replyError(res, err)
	}
	if len(keys) == 0 {
		return res.Text("No keys")
	}
	return res.Text(strings.Join(keys, "\n"))
}

func help(_ *droid.Request, res *droid.Response) error {
	return res.Text(strings.Join([]string{
		"register <droid> using <token>",
		"unregister <droid>",
		"extend <droid> from <repository>",
		"reload <droid>",
		"remove extension <extension> from <droid>",
		"list extensions <droid>",
		"list droids",
		"add key <key> <value> to <droid>",
		"remove key <key> from <droid>",
		"list keys <droid>",
	}, "\n"))
}

// unwrapLink strips Slack's "<url>" and "<url|label>" link markup.
func unwrapLink(s string) string {
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = s[1 : len(s)-1]
		s, _, _ = strings.Cut(s, "|")
	}
	return s
}
