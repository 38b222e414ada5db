// Package slack connects droids to Slack, receiving events either over an
// RTM websocket or through the Events API.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ziadkadry99/gynoid/internal/droid"
)

// Mode selects how events reach the adapter.
type Mode string

const (
	ModeRTM    Mode = "rtm"
	ModeEvents Mode = "events"
)

const (
	pingInterval      = 30 * time.Second
	maxReconnectDelay = time.Minute
	queueSize         = 100
)

// Options configures adapters built by NewFactory.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Mode       Mode
	Dialer     *websocket.Dialer
	// Hub receives Events API and interactive callbacks. Required in
	// ModeEvents.
	Hub *Hub
	// ReconnectDelay is the first wait before redialling a dropped RTM
	// connection. It doubles per failed attempt up to a minute.
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

// Adapter implements droid.Adapter for one Slack bot token.
type Adapter struct {
	name   string
	client *Client
	opts   Options
	logger *slog.Logger

	mu          sync.RWMutex
	botID       string
	sink        droid.EventSink
	users       map[string]droid.User
	userByName  map[string]string
	channels    map[string]droid.Channel
	channelName map[string]Conversation
	ims         map[string]droid.Channel
	conn        *websocket.Conn
	live        bool
	cancel      context.CancelFunc
	queue       chan func(context.Context)

	writeMu     sync.Mutex
	loops       sync.WaitGroup
	dispatching atomic.Int32
}

// New returns an adapter for token.
func New(name, token string, opts Options) *Adapter {
	if opts.Mode == "" {
		opts.Mode = ModeRTM
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		name:   name,
		client: NewClient(token, opts.BaseURL, opts.HTTPClient),
		opts:   opts,
		logger: logger.With("droid", name, "adapter", "slack"),
	}
}

// NewFactory returns a droid.AdapterFactory building Slack adapters.
func NewFactory(opts Options) droid.AdapterFactory {
	return func(name, token string) (droid.Adapter, error) {
		if opts.Mode == ModeEvents && opts.Hub == nil {
			return nil, errors.New("slack events mode requires a hub")
		}
		return New(name, token, opts), nil
	}
}

// Name returns the droid the adapter belongs to.
func (a *Adapter) Name() string { return a.name }

// Client returns the Web API client.
func (a *Adapter) Client() *Client { return a.client }

// Start authenticates, loads the user and channel directory and begins
// delivering events to sink.
func (a *Adapter) Start(ctx context.Context, sink droid.EventSink) error {
	id, err := a.client.AuthTest(ctx)
	if err != nil {
		return err
	}
	if err := a.refresh(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	queue := make(chan func(context.Context), queueSize)
	a.mu.Lock()
	a.botID = id.UserID
	a.sink = sink
	a.cancel = cancel
	a.queue = queue
	a.mu.Unlock()

	a.loops.Add(1)
	go a.work(loopCtx, queue)
	if a.opts.Hub != nil {
		a.opts.Hub.Register(a)
	}

	if a.opts.Mode == ModeEvents {
		a.setLive(true)
		a.logger.Info("slack events connected", "bot", id.User)
		return nil
	}

	conn, err := a.dial(ctx)
	if err != nil {
		a.Disconnect()
		return err
	}
	a.mu.Lock()
	a.conn = conn
	a.live = true
	a.mu.Unlock()

	a.loops.Add(1)
	go a.run(loopCtx, conn)
	a.logger.Info("slack rtm connected", "bot", id.User)
	return nil
}

func (a *Adapter) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := a.client.RTMConnect(ctx)
	if err != nil {
		return nil, err
	}
	conn, _, err := a.opts.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return conn, nil
}

// Disconnect closes the websocket and leaves the hub. It waits for the
// event loops to exit unless it is called from an event handler, in which
// case they exit once the handler returns.
func (a *Adapter) Disconnect() error {
	if a.opts.Hub != nil {
		a.opts.Hub.Unregister(a)
	}

	a.mu.Lock()
	conn, cancel := a.conn, a.cancel
	a.conn, a.cancel, a.queue, a.sink = nil, nil, nil, nil
	a.live = false
	if cancel != nil {
		cancel()
	}
	a.mu.Unlock()

	if cancel == nil {
		return nil
	}
	var err error
	if conn != nil {
		a.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		a.writeMu.Unlock()
		err = conn.Close()
	}
	if a.dispatching.Load() == 0 {
		a.loops.Wait()
	}
	return err
}

// Connected reports whether events are flowing. It is false while a
// dropped RTM connection is being redialled.
func (a *Adapter) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

func (a *Adapter) setLive(live bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.live = live
}

// BotUserID returns the bot's Slack user id.
func (a *Adapter) BotUserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.botID
}

// rtmFrame is an RTM or Events API event.
type rtmFrame struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	User      string `json:"user"`
	BotID     string `json:"bot_id"`
	Text      string `json:"text"`
	Channel   string `json:"channel"`
	TS        string `json:"ts"`
	ThreadTS  string `json:"thread_ts"`
	Reaction  string `json:"reaction"`
	TriggerID string `json:"trigger_id"`
	Item      struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	} `json:"item"`
}

// run reads one connection after another until ctx is cancelled.
func (a *Adapter) run(ctx context.Context, conn *websocket.Conn) {
	defer a.loops.Done()
	for {
		err := a.read(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("slack rtm connection lost", "error", err)
		a.mu.Lock()
		if a.conn == conn {
			a.conn = nil
		}
		a.live = false
		a.mu.Unlock()

		if conn = a.reconnect(ctx); conn == nil {
			return
		}
	}
}

func (a *Adapter) read(ctx context.Context, conn *websocket.Conn) error {
	pingCtx, stop := context.WithCancel(ctx)
	defer stop()
	go a.pingLoop(pingCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		a.dispatching.Add(1)
		a.receive(ctx, data)
		a.dispatching.Add(-1)
	}
}

// reconnect redials with exponential backoff. It returns nil once ctx is
// cancelled.
func (a *Adapter) reconnect(ctx context.Context) *websocket.Conn {
	delay := a.opts.ReconnectDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		conn, err := a.dial(ctx)
		if err != nil {
			a.logger.Warn("slack rtm reconnect failed", "attempt", attempt, "error", err)
			delay = min(delay*2, maxReconnectDelay)
			continue
		}
		if err := a.refresh(ctx); err != nil {
			a.logger.Warn("unable to refresh slack directory", "error", err)
		}

		a.mu.Lock()
		if ctx.Err() != nil {
			a.mu.Unlock()
			conn.Close()
			return nil
		}
		a.conn = conn
		a.live = true
		a.mu.Unlock()
		a.logger.Info("slack rtm reconnected", "attempts", attempt)
		return conn
	}
}

func (a *Adapter) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	id := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id++
			a.writeMu.Lock()
			err := conn.WriteJSON(map[string]any{"id": id, "type": "ping"})
			a.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// work runs queued callbacks one at a time, so a droid sees its Events API
// deliveries in arrival order.
func (a *Adapter) work(ctx context.Context, queue <-chan func(context.Context)) {
	defer a.loops.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-queue:
			a.dispatching.Add(1)
			job(ctx)
			a.dispatching.Add(-1)
		}
	}
}

// enqueue hands job to the worker. It reports false when the adapter is
// stopped or its queue is full.
func (a *Adapter) enqueue(job func(context.Context)) bool {
	a.mu.RLock()
	queue := a.queue
	a.mu.RUnlock()
	if queue == nil {
		return false
	}
	select {
	case queue <- job:
		return true
	default:
		a.logger.Warn("slack event queue full, dropping event")
		return false
	}
}

// directoryEvents keep the user and channel directory current.
var directoryEvents = map[string]bool{
	"channel_created": true,
	"channel_joined":  true,
	"channel_rename":  true,
	"group_joined":    true,
	"group_rename":    true,
	"im_created":      true,
	"team_join":       true,
	"user_change":     true,
}

// receive decodes one raw event.
func (a *Adapter) receive(ctx context.Context, data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		a.logger.Debug("skipping undecodable frame", "error", err)
		return
	}
	if directoryEvents[head.Type] {
		a.updateDirectory(head.Type, data)
		return
	}
	var frame rtmFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		a.logger.Debug("skipping undecodable frame", "type", head.Type, "error", err)
		return
	}
	a.handle(ctx, frame)
}

// handle turns a frame into a droid event and hands it to the sink. Frames
// from bots, including this one, are dropped.
func (a *Adapter) handle(ctx context.Context, f rtmFrame) {
	a.mu.RLock()
	sink, botID := a.sink, a.botID
	a.mu.RUnlock()
	if sink == nil || f.BotID != "" || (f.User != "" && f.User == botID) {
		return
	}

	switch f.Type {
	case "message":
		if f.Subtype != "" && f.Subtype != "thread_broadcast" && f.Subtype != "file_share" {
			return
		}
		sink.OnMessage(ctx, droid.Event{
			Type:      droid.EventMessage,
			Timestamp: f.TS,
			ThreadID:  f.ThreadTS,
			Text:      f.Text,
			User:      a.user(f.User),
			Channel:   a.channel(f.Channel),
			TriggerID: f.TriggerID,
		})
	case "reaction_added", "reaction_removed":
		ev := droid.Event{
			Type:      droid.EventType(f.Type),
			Timestamp: f.Item.TS,
			User:      a.user(f.User),
			Channel:   a.channel(f.Item.Channel),
			Reaction:  f.Reaction,
		}
		if f.Type == "reaction_added" {
			sink.OnReactionAdded(ctx, ev)
		} else {
			sink.OnReactionRemoved(ctx, ev)
		}
	}
}

func (a *Adapter) submission(p interactivePayload) droid.Submission {
	user := a.user(p.User.ID)
	if user.Name == user.ID && p.User.Name != "" {
		user.Name = p.User.Name
	}
	return droid.Submission{
		Type:        p.Type,
		CallbackID:  p.CallbackID,
		User:        user,
		Channel:     a.channel(p.Channel.ID),
		Values:      p.Submission,
		State:       p.State,
		TriggerID:   p.TriggerID,
		ResponseURL: p.ResponseURL,
	}
}

func (a *Adapter) submit(ctx context.Context, s droid.Submission) {
	a.mu.RLock()
	sink := a.sink
	a.mu.RUnlock()
	if sink == nil {
		return
	}
	if !sink.OnSubmission(ctx, s) {
		a.logger.Warn("interactive callback not handled", "callback_id", s.CallbackID)
	}
}

// Text posts a plain message.
func (a *Adapter) Text(ctx context.Context, text, targetID string) error {
	return a.client.PostMessage(ctx, targetID, text, nil)
}

// Attachment posts a message with one attachment.
func (a *Adapter) Attachment(ctx context.Context, att droid.Attachment, targetID string) error {
	return a.client.PostMessage(ctx, targetID, "", []droid.Attachment{att})
}

// Upload uploads a file.
func (a *Adapter) Upload(ctx context.Context, f droid.File, targetID string) error {
	return a.client.UploadFile(ctx, targetID, f)
}

// AddReaction adds an emoji reaction.
func (a *Adapter) AddReaction(ctx context.Context, r droid.Reaction) error {
	return a.client.AddReaction(ctx, r)
}

// RemoveReaction removes an emoji reaction.
func (a *Adapter) RemoveReaction(ctx context.Context, r droid.Reaction) error {
	return a.client.RemoveReaction(ctx, r)
}

// Dialog opens an interactive dialog.
func (a *Adapter) Dialog(ctx context.Context, d droid.Dialog, triggerID string) error {
	return a.client.OpenDialog(ctx, triggerID, d)
}

// ChannelByName finds a public channel.
func (a *Adapter) ChannelByName(name string) (droid.Channel, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.channelName[strings.TrimPrefix(name, "#")]
	if !ok || c.IsPrivate {
		return droid.Channel{}, false
	}
	return droid.Channel{ID: c.ID, Name: c.Name}, true
}

// ChannelOrGroupByName finds a public or private channel.
func (a *Adapter) ChannelOrGroupByName(name string) (droid.Channel, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.channelName[strings.TrimPrefix(name, "#")]
	if !ok {
		return droid.Channel{}, false
	}
	return droid.Channel{ID: c.ID, Name: c.Name}, true
}

// DMByName finds the direct message channel with a user.
func (a *Adapter) DMByName(name string) (droid.Channel, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.userByName[strings.TrimPrefix(name, "@")]
	if !ok {
		return droid.Channel{}, false
	}
	im, ok := a.ims[id]
	return im, ok
}

// refresh reloads the user and channel directory.
func (a *Adapter) refresh(ctx context.Context) error {
	users, err := a.client.Users(ctx)
	if err != nil {
		return err
	}
	convs, err := a.client.Conversations(ctx)
	if err != nil {
		return err
	}

	byID := make(map[string]droid.User, len(users))
	byName := make(map[string]string, len(users))
	for _, u := range users {
		byID[u.ID] = u
		byName[u.Name] = u.ID
	}
	channels := make(map[string]droid.Channel, len(convs))
	names := make(map[string]Conversation, len(convs))
	ims := make(map[string]droid.Channel)
	for _, c := range convs {
		if c.IsIM {
			name := c.User
			if u, ok := byID[c.User]; ok {
				name = u.Name
			}
			ch := droid.Channel{ID: c.ID, Name: name, IsIM: true}
			channels[c.ID] = ch
			ims[c.User] = ch
			continue
		}
		channels[c.ID] = droid.Channel{ID: c.ID, Name: c.Name}
		names[c.Name] = c
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.users, a.userByName = byID, byName
	a.channels, a.channelName, a.ims = channels, names, ims
	return nil
}

func (a *Adapter) updateDirectory(typ string, data []byte) {
	var f struct {
		Channel Conversation    `json:"channel"`
		User    json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		a.logger.Debug("skipping undecodable directory event", "type", typ, "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	switch typ {
	case "channel_created", "channel_joined", "channel_rename":
		a.putChannel(f.Channel)
	case "group_joined", "group_rename":
		f.Channel.IsPrivate = true
		a.putChannel(f.Channel)
	case "im_created":
		var userID string
		if err := json.Unmarshal(f.User, &userID); err != nil || f.Channel.ID == "" {
			return
		}
		name := userID
		if u, ok := a.users[userID]; ok {
			name = u.Name
		}
		ch := droid.Channel{ID: f.Channel.ID, Name: name, IsIM: true}
		a.channels[ch.ID] = ch
		a.ims[userID] = ch
	case "team_join", "user_change":
		var m member
		if err := json.Unmarshal(f.User, &m); err != nil || m.ID == "" {
			return
		}
		a.putUser(m)
	}
	a.logger.Debug("slack directory updated", "event", typ)
}

// putChannel records c, dropping the name it had before a rename. The
// caller holds a.mu.
func (a *Adapter) putChannel(c Conversation) {
	if c.ID == "" || c.Name == "" {
		return
	}
	if old, ok := a.channels[c.ID]; ok {
		if prev, ok := a.channelName[old.Name]; ok && prev.ID == c.ID {
			c.IsPrivate = c.IsPrivate || prev.IsPrivate
			delete(a.channelName, old.Name)
		}
	}
	a.channels[c.ID] = droid.Channel{ID: c.ID, Name: c.Name}
	a.channelName[c.Name] = c
}

// putUser records m and renames its direct message. The caller holds a.mu.
func (a *Adapter) putUser(m member) {
	if old, ok := a.users[m.ID]; ok {
		delete(a.userByName, old.Name)
	}
	if m.Deleted {
		delete(a.users, m.ID)
		return
	}
	u := m.user()
	a.users[u.ID] = u
	a.userByName[u.Name] = u.ID
	if im, ok := a.ims[u.ID]; ok {
		im.Name = u.Name
		a.ims[u.ID] = im
		a.channels[im.ID] = im
	}
}

func (a *Adapter) user(id string) droid.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if u, ok := a.users[id]; ok {
		return u
	}
	return droid.User{ID: id, Name: id}
}

// channel resolves a conversation id. Unknown ids starting with "D" are
// direct messages.
func (a *Adapter) channel(id string) droid.Channel {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if c, ok := a.channels[id]; ok {
		return c
	}
	return droid.Channel{ID: id, Name: id, IsIM: strings.HasPrefix(id, "D")}
}
