// Package extender fetches extension code into the install directory,
// either by cloning a git repository or by copying a builtin definition
// compiled into the binary.
package extender

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Options configures an Extender.
type Options struct {
	// InstallDir receives one directory per extension.
	InstallDir string
	// Token returns a GitHub token used for https clones of github.com
	// repositories. It may be nil or return "".
	Token func() string
	// InstallCommand, when set, runs through "sh -c" inside the extension
	// directory after a clone.
	InstallCommand string
	// Builtins maps extension names to their files. A builtin is copied
	// instead of cloned.
	Builtins map[string]fs.FS
	Logger   *slog.Logger
}

// Extender implements cluster.Extender.
type Extender struct {
	opts   Options
	logger *slog.Logger
}

// New returns an Extender.
func New(opts Options) *Extender {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extender{opts: opts, logger: logger}
}

// Dir returns the directory an extension is installed into.
func (e *Extender) Dir(name string) string {
	return filepath.Join(e.opts.InstallDir, name)
}

// IsBuiltin reports whether name is served from the binary.
func (e *Extender) IsBuiltin(name string) bool {
	_, ok := e.opts.Builtins[name]
	return ok
}

// Clone replaces the extension directory with a fresh copy of url. A
// "#ref" suffix on url selects a branch or tag.
func (e *Extender) Clone(ctx context.Context, rawURL, name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid extension name %q", name)
	}
	dir := e.Dir(name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing %s: %w", dir, err)
	}
	if err := os.MkdirAll(e.opts.InstallDir, 0o755); err != nil {
		return fmt.Errorf("creating install directory: %w", err)
	}

	if src, ok := e.opts.Builtins[name]; ok {
		e.logger.Info("installing builtin extension", "extension", name)
		return copyFS(dir, src)
	}

	cloneURL, ref := splitRef(rawURL)
	args := []string{"clone", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, e.authenticated(cloneURL), dir)

	e.logger.Info("cloning extension", "extension", name, "url", cloneURL, "ref", ref)
	if out, err := e.run(ctx, "", "git", args...); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("git clone %s: %w: %s", cloneURL, err, redact(out, e.token()))
	}
	return nil
}

// InstallDependencies runs the configured install command inside the
// extension directory. Builtins and an empty command are no-ops.
func (e *Extender) InstallDependencies(ctx context.Context, name string) error {
	if e.opts.InstallCommand == "" || e.IsBuiltin(name) {
		return nil
	}
	e.logger.Info("installing extension dependencies", "extension", name)
	if out, err := e.run(ctx, e.Dir(name), "sh", "-c", e.opts.InstallCommand); err != nil {
		return fmt.Errorf("running %q: %w: %s", e.opts.InstallCommand, err, out)
	}
	return nil
}

func (e *Extender) token() string {
	if e.opts.Token == nil {
		return ""
	}
	return e.opts.Token()
}

// authenticated adds the token to https github.com URLs.
func (e *Extender) authenticated(raw string) string {
	tok := e.token()
	if tok == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host != "github.com" || u.User != nil {
		return raw
	}
	u.User = url.UserPassword("x-access-token", tok)
	return u.String()
}

func (e *Extender) run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return strings.TrimSpace(out.String()), err
}

func splitRef(raw string) (string, string) {
	u, ref, _ := strings.Cut(raw, "#")
	return u, ref
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}

func copyFS(dir string, src fs.FS) error {
	return fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := fs.ReadFile(src, path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
