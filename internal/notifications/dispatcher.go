// Package notifications posts fleet changes to webhook subscribers, such
// as Slack incoming webhooks.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ziadkadry99/gynoid/internal/audit"
)

// Dispatcher delivers notifications to webhook subscribers. It implements
// cluster.Auditor.
type Dispatcher struct {
	webhooks []string
	minimum  Severity
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

// NewDispatcher creates a Dispatcher posting to webhooks. Notifications
// below minimum are dropped.
func NewDispatcher(webhooks []string, minimum Severity, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		webhooks: webhooks,
		minimum:  minimum,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Record turns a cluster mutation into a notification and sends it in the
// background.
func (d *Dispatcher) Record(ctx context.Context, action, droid, summary string) {
	n := Notification{
		Action:    action,
		Severity:  severityOf(action),
		Droid:     droid,
		Actor:     audit.ActorFrom(ctx),
		Message:   summary,
		CreatedAt: d.now().UTC(),
	}
	n.Text = fmt.Sprintf("[%s] %s (by %s)", n.Severity, summary, n.Actor)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := d.Dispatch(ctx, n); err != nil {
			d.logger.Warn("notification not delivered", "action", action, "droid", droid, "error", err)
		}
	}()
}

// Dispatch sends n to every webhook if its severity passes the filter.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	if !severityMatches(n.Severity, d.minimum) {
		return nil
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	var firstErr error
	for _, url := range d.webhooks {
		if err := d.SendWebhook(ctx, url, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Wait blocks until every notification started by Record is done.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// SendWebhook POSTs payload to the given URL.
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// severityMatches returns true if the notification severity meets or exceeds the filter threshold.
func severityMatches(actual, filter Severity) bool {
	levels := map[Severity]int{
		SeverityInfo:     0,
		SeverityWarning:  1,
		SeverityCritical: 2,
	}
	return levels[actual] >= levels[filter]
}
