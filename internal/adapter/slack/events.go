package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	// maxSkew is how far a request timestamp may drift from now.
	maxSkew = 5 * time.Minute
	// seenTTL outlasts Slack's last retry of an event.
	seenTTL = 15 * time.Minute
)

// Hub receives Events API and interactive callbacks and routes them to the
// adapter of the droid named in the URL.
type Hub struct {
	signingSecret string
	logger        *slog.Logger
	now           func() time.Time

	mu       sync.RWMutex
	adapters map[string]*Adapter

	seenMu sync.Mutex
	seen   map[string]time.Time
}

// NewHub returns a hub. An empty signingSecret disables signature checks.
func NewHub(signingSecret string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		signingSecret: signingSecret,
		logger:        logger,
		now:           time.Now,
		adapters:      make(map[string]*Adapter),
		seen:          make(map[string]time.Time),
	}
}

// Register routes callbacks for a.Name() to a.
func (h *Hub) Register(a *Adapter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.adapters[a.Name()] = a
}

// Unregister stops routing callbacks to a. A newer adapter registered
// under the same name is kept.
func (h *Hub) Unregister(a *Adapter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.adapters[a.Name()] == a {
		delete(h.adapters, a.Name())
	}
}

func (h *Hub) adapter(name string) (*Adapter, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	a, ok := h.adapters[name]
	return a, ok
}

// firstDelivery reports whether eventID has not been seen in the last
// seenTTL and marks it seen.
func (h *Hub) firstDelivery(eventID string) bool {
	if eventID == "" {
		return true
	}
	now := h.now()
	h.seenMu.Lock()
	defer h.seenMu.Unlock()
	for id, at := range h.seen {
		if now.Sub(at) > seenTTL {
			delete(h.seen, id)
		}
	}
	if _, dup := h.seen[eventID]; dup {
		return false
	}
	h.seen[eventID] = now
	return true
}

// RegisterRoutes mounts the Events API and interactivity endpoints.
func RegisterRoutes(r chi.Router, h *Hub) {
	r.Post("/api/slack/events/{droid}", h.HandleEvent)
	r.Post("/api/slack/interactive/{droid}", h.HandleInteractive)
}

// envelope is the top-level Events API payload.
type envelope struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge"`
	EventID   string          `json:"event_id"`
	Event     json.RawMessage `json:"event"`
}

// readSigned reads the request body and checks its signature. It writes
// the error response and returns false on failure.
func (h *Hub) readSigned(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return nil, false
	}
	defer r.Body.Close()

	if h.signingSecret != "" && !h.verifySignature(r, body) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

// HandleEvent acknowledges a callback and queues its event on the droid's
// adapter so Slack gets its answer within the retry window. Redeliveries
// of an event already accepted are acknowledged and dropped.
func (h *Hub) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readSigned(w, r)
	if !ok {
		return
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	switch env.Type {
	case "url_verification":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": env.Challenge})
	case "event_callback":
		name := chi.URLParam(r, "droid")
		a, ok := h.adapter(name)
		if !ok || a.opts.Mode != ModeEvents {
			http.Error(w, "unknown droid", http.StatusNotFound)
			return
		}
		if !h.firstDelivery(env.EventID) {
			h.logger.Debug("dropping redelivered event", "droid", name, "event_id", env.EventID,
				"retry", r.Header.Get("X-Slack-Retry-Num"))
			w.WriteHeader(http.StatusOK)
			return
		}
		raw := env.Event
		if !a.enqueue(func(ctx context.Context) { a.receive(ctx, raw) }) {
			h.forget(env.EventID)
			http.Error(w, "droid is not accepting events", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// forget lets a later redelivery of eventID through.
func (h *Hub) forget(eventID string) {
	h.seenMu.Lock()
	defer h.seenMu.Unlock()
	delete(h.seen, eventID)
}

// interactivePayload is the JSON carried in the payload form field of an
// interactive callback.
type interactivePayload struct {
	Type        string `json:"type"`
	CallbackID  string `json:"callback_id"`
	TriggerID   string `json:"trigger_id"`
	State       string `json:"state"`
	ResponseURL string `json:"response_url"`
	User        struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
	Channel struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"channel"`
	Submission map[string]string `json:"submission"`
}

// HandleInteractive accepts a dialog submission and queues it for the
// extension that registered its callback id. Other interaction types are
// acknowledged and ignored.
func (h *Hub) HandleInteractive(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readSigned(w, r)
	if !ok {
		return
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	raw := form.Get("payload")
	if raw == "" {
		http.Error(w, "missing payload", http.StatusBadRequest)
		return
	}
	var p interactivePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	a, ok := h.adapter(chi.URLParam(r, "droid"))
	if !ok {
		http.Error(w, "unknown droid", http.StatusNotFound)
		return
	}
	if p.Type != "dialog_submission" {
		w.WriteHeader(http.StatusOK)
		return
	}

	sub := a.submission(p)
	if !a.enqueue(func(ctx context.Context) { a.submit(ctx, sub) }) {
		http.Error(w, "droid is not accepting callbacks", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// verifySignature checks the v0 HMAC-SHA256 signature and the timestamp
// window.
func (h *Hub) verifySignature(r *http.Request, body []byte) bool {
	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")
	if timestamp == "" || signature == "" {
		return false
	}
	if !h.verifyTimestamp(timestamp) {
		return false
	}
	return hmac.Equal([]byte(Sign(h.signingSecret, timestamp, body)), []byte(signature))
}

func (h *Hub) verifyTimestamp(timestamp string) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	diff := h.now().Sub(time.Unix(ts, 0))
	if diff < 0 {
		diff = -diff
	}
	return diff <= maxSkew
}

// Sign computes the X-Slack-Signature value for a request body.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}
