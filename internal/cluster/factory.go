package cluster

import (
	"fmt"
	"log/slog"

	"github.com/ziadkadry99/gynoid/internal/droid"
	"github.com/ziadkadry99/gynoid/internal/registry"
)

// NewRuntimeFactory returns a RuntimeFactory that connects droids through
// newAdapter and loads their installed extensions from installDir. An
// extension that fails to load is logged and skipped so the droid can
// still be repaired by reinstalling it.
func NewRuntimeFactory(newAdapter droid.AdapterFactory, catalog *droid.Catalog, installDir string, logger *slog.Logger) RuntimeFactory {
	return func(def registry.Droid, keys map[string]string) (Runtime, error) {
		adapter, err := newAdapter(def.Name, def.Token)
		if err != nil {
			return nil, fmt.Errorf("creating adapter: %w", err)
		}
		rt, err := droid.New(droid.Options{
			Name:       def.Name,
			Adapter:    adapter,
			Catalog:    catalog,
			InstallDir: installDir,
			Keys:       keys,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		for _, ext := range def.Extensions {
			if err := rt.LoadExtension(ext.Name, ext.Repository); err != nil {
				logger.Error("unable to load extension", "droid", def.Name, "extension", ext.Name, "error", err)
			}
		}
		return rt, nil
	}
}
