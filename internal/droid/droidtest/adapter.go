// Package droidtest provides an in-memory droid.Adapter for tests.
package droidtest

import (
	"context"
	"errors"
	"sync"

	"github.com/ziadkadry99/gynoid/internal/droid"
)

// Sent is one outbound call recorded by Adapter.
type Sent struct {
	Kind       string
	TargetID   string
	Text       string
	Attachment droid.Attachment
	File       droid.File
	Reaction   droid.Reaction
	Dialog     droid.Dialog
	TriggerID  string
}

// Adapter records outbound calls and lets tests inject events.
type Adapter struct {
	BotID string
	// StartErr and DisconnectErr are returned by Start and Disconnect.
	StartErr      error
	DisconnectErr error

	mu       sync.Mutex
	sink     droid.EventSink
	started  bool
	lost     bool
	sent     []Sent
	channels map[string]droid.Channel
	dms      map[string]droid.Channel
}

// New returns an adapter whose bot user id is botID.
func New(botID string) *Adapter {
	return &Adapter{
		BotID:    botID,
		channels: make(map[string]droid.Channel),
		dms:      make(map[string]droid.Channel),
	}
}

// AddChannel makes a channel resolvable by name.
func (a *Adapter) AddChannel(ch droid.Channel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch.IsIM {
		a.dms[ch.Name] = ch
		return
	}
	a.channels[ch.Name] = ch
}

func (a *Adapter) Start(_ context.Context, sink droid.EventSink) error {
	if a.StartErr != nil {
		return a.StartErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sink = sink
	a.started = true
	a.lost = false
	return nil
}

func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	a.started = false
	a.mu.Unlock()
	return a.DisconnectErr
}

// Started reports whether Start succeeded and Disconnect was not called.
func (a *Adapter) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

func (a *Adapter) BotUserID() string { return a.BotID }

func (a *Adapter) record(s Sent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, s)
	return nil
}

func (a *Adapter) Text(_ context.Context, text, targetID string) error {
	return a.record(Sent{Kind: "text", Text: text, TargetID: targetID})
}

func (a *Adapter) Attachment(_ context.Context, att droid.Attachment, targetID string) error {
	return a.record(Sent{Kind: "attachment", Attachment: att, TargetID: targetID})
}

func (a *Adapter) Upload(_ context.Context, f droid.File, targetID string) error {
	return a.record(Sent{Kind: "upload", File: f, TargetID: targetID})
}

func (a *Adapter) AddReaction(_ context.Context, r droid.Reaction) error {
	return a.record(Sent{Kind: "reaction_add", Reaction: r, TargetID: r.ChannelID})
}

func (a *Adapter) RemoveReaction(_ context.Context, r droid.Reaction) error {
	return a.record(Sent{Kind: "reaction_remove", Reaction: r, TargetID: r.ChannelID})
}

func (a *Adapter) Dialog(_ context.Context, d droid.Dialog, triggerID string) error {
	return a.record(Sent{Kind: "dialog", Dialog: d, TriggerID: triggerID})
}

func (a *Adapter) ChannelByName(name string) (droid.Channel, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.channels[name]
	return ch, ok
}

func (a *Adapter) DMByName(name string) (droid.Channel, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.dms[name]
	return ch, ok
}

func (a *Adapter) ChannelOrGroupByName(name string) (droid.Channel, bool) {
	return a.ChannelByName(name)
}

// Sent returns a copy of every recorded call.
func (a *Adapter) Sent() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Sent, len(a.sent))
	copy(out, a.sent)
	return out
}

// Texts returns the text of every recorded text message.
func (a *Adapter) Texts() []string {
	var out []string
	for _, s := range a.Sent() {
		if s.Kind == "text" {
			out = append(out, s.Text)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = nil
}

// ErrNotStarted is returned by Send when the adapter has no sink.
var ErrNotStarted = errors.New("droidtest: adapter not started")

// Send delivers ev to the sink registered by Start, the way a platform
// connection would, and reports whether a listener consumed it.
func (a *Adapter) Send(ctx context.Context, ev droid.Event) (bool, error) {
	a.mu.Lock()
	sink := a.sink
	a.mu.Unlock()
	if sink == nil {
		return false, ErrNotStarted
	}
	switch ev.Type {
	case droid.EventReactionAdded:
		return sink.OnReactionAdded(ctx, ev), nil
	case droid.EventReactionRemoved:
		return sink.OnReactionRemoved(ctx, ev), nil
	default:
		return sink.OnMessage(ctx, ev), nil
	}
}

// Submit delivers an interactive submission to the sink.
func (a *Adapter) Submit(ctx context.Context, s droid.Submission) (bool, error) {
	a.mu.Lock()
	sink := a.sink
	a.mu.Unlock()
	if sink == nil {
		return false, ErrNotStarted
	}
	return sink.OnSubmission(ctx, s), nil
}

// Drop simulates the platform connection going away after Start.
func (a *Adapter) Drop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lost = true
}

// Connected reports whether the adapter is started and not dropped.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started && !a.lost
}
