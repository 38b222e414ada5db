package cluster

import (
	"context"
	"fmt"

	"github.com/ziadkadry99/gynoid/internal/registry"
)

// Bootstrap makes sure the management droid is running with at least one
// extension. When the droid is missing or has no extensions it is started
// with token, falling back to the persisted token, and extension is
// installed on it. It is a no-op for a droid that already has extensions.
func (c *Cluster) Bootstrap(ctx context.Context, name, token, extension string) error {
	if def, ok := c.store.Droid(name); ok && len(def.Extensions) > 0 {
		return nil
	}

	c.logger.Info("management droid has no extensions, installing", "droid", name, "extension", extension)
	if _, err := c.Runtime(name); err != nil {
		if err := c.StartDroid(ctx, registry.Droid{Name: name, Token: token}); err != nil {
			return fmt.Errorf("registering management droid: %w", err)
		}
	}
	if _, err := c.InstallExtension(ctx, extension, name); err != nil {
		return fmt.Errorf("installing management extension: %w", err)
	}
	return nil
}
