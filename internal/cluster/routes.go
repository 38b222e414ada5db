package cluster

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/gynoid/internal/registry"
)

// RegisterRoutes mounts the fleet admin endpoints under /api/droids.
func RegisterRoutes(r chi.Router, c *Cluster) {
	r.Route("/api/droids", func(r chi.Router) {
		r.Get("/", handleList(c))
		r.Post("/", handleStart(c))
		r.Route("/{droid}", func(r chi.Router) {
			r.Delete("/", handleRemove(c))
			r.Post("/reload", handleReload(c))
			r.Post("/disconnect", handleDisconnect(c))
			r.Get("/extensions", handleListExtensions(c))
			r.Post("/extensions", handleInstallExtension(c))
			r.Delete("/extensions/{extension}", handleRemoveExtension(c))
			r.Get("/keys", handleListKeys(c))
			r.Put("/keys/{key}", handleAddKey(c))
			r.Delete("/keys/{key}", handleRemoveKey(c))
		})
	})
}

func handleList(c *Cluster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Droids())
	}
}

type startRequest struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

func handleStart(c *Cluster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := c.StartDroid(r.Context(), registry.Droid{Name: req.Name, Token: req.Token}); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
	}
}

func handleRemove(c *Cluster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.RemoveDroid(r.Context(), chi.URLParam(r, "droid")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleReload(c *Cluster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.ReloadDroid(r.Context(), chi.URLParam(r, "droid")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDisconnect(c *Cluster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.DisconnectDroid(r.Context(), chi.URLParam(r, "droid")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListExtensions(c *Cluster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exts, err := c.ListExtensions(chi.URLParam(r, "droid"))
		if err != nil {
			writeError(w, err)
			return
		}
		if exts == nil {
			exts = []registry.Extension{}
		}
		writeJSON(w, http.StatusOK, exts)
	}
}

type installRequest struct {
	Repository string `json:"repository"`
}

func handleInstallExtension(c *Cluster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req installRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		repo, err := c.InstallExtension(r.Context(), req.Repository, chi.URLParam(r, "droid"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, repo)
	}
}

func handleRemoveExtension(c *Cluster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := c.RemoveExtension(r.Context(), chi.URLParam(r, "extension"), chi.URLParam(r, "droid"))
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListKeys(c *Cluster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := c.ListKeys(chi.URLParam(r, "droid"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, keys)
	}
}

type keyRequest struct {
	Value string `json:"value"`
}

func handleAddKey(c *Cluster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req keyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		err := c.AddKey(r.Context(), chi.URLParam(r, "droid"), chi.URLParam(r, "key"), req.Value)
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRemoveKey(c *Cluster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.RemoveKey(r.Context(), chi.URLParam(r, "droid"), chi.URLParam(r, "key")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var parseErr *RepositoryParseError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExtensionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrDuplicateDroid):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrMissingToken), errors.As(err, &parseErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
