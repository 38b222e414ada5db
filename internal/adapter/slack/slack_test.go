package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/ziadkadry99/gynoid/internal/droid"
)

// fakeSlack serves the Web API methods the adapter uses plus an RTM
// websocket.
type fakeSlack struct {
	server *httptest.Server
	conns  chan *websocket.Conn
	// rtmDown makes rtm.connect fail.
	rtmDown atomic.Bool

	mu    sync.Mutex
	calls map[string][]map[string]any
}

func newFakeSlack(t *testing.T) *fakeSlack {
	t.Helper()
	f := &fakeSlack{conns: make(chan *websocket.Conn, 1), calls: make(map[string][]map[string]any)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		method := strings.TrimPrefix(r.URL.Path, "/api/")
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			writeAPI(w, map[string]any{"ok": false, "error": "invalid_auth"})
			return
		}
		f.record(method, r)
		switch method {
		case "auth.test":
			writeAPI(w, map[string]any{"ok": true, "user_id": "UBOT", "user": "gynoid"})
		case "rtm.connect":
			if f.rtmDown.Load() {
				writeAPI(w, map[string]any{"ok": false, "error": "service_unavailable"})
				return
			}
			writeAPI(w, map[string]any{"ok": true, "url": "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"})
		case "users.list":
			writeAPI(w, map[string]any{"ok": true, "members": []map[string]any{
				{"id": "U1", "name": "alice", "profile": map[string]any{"display_name": "Alice"}},
				{"id": "U2", "name": "bob"},
				{"id": "U3", "name": "gone", "deleted": true},
			}})
		case "conversations.list":
			writeAPI(w, map[string]any{"ok": true, "channels": []map[string]any{
				{"id": "C1", "name": "general"},
				{"id": "G1", "name": "secret", "is_private": true},
				{"id": "D1", "is_im": true, "user": "U1"},
			}})
		default:
			writeAPI(w, map[string]any{"ok": true})
		}
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		f.conns <- conn
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSlack) record(method string, r *http.Request) {
	args := map[string]any{}
	switch {
	case strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"):
		json.NewDecoder(r.Body).Decode(&args)
	case strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/"):
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				args[k] = v[0]
			}
			if fh, ok := r.MultipartForm.File["file"]; ok {
				file, _ := fh[0].Open()
				data, _ := io.ReadAll(file)
				args["file"] = string(data)
			}
		}
	default:
		r.ParseForm()
		for k, v := range r.PostForm {
			args[k] = v[0]
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method] = append(f.calls[method], args)
}

func (f *fakeSlack) callsTo(method string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.calls[method]...)
}

func writeAPI(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// chanSink records events.
type chanSink struct {
	events chan droid.Event
	subs   chan droid.Submission
	// onMessage runs inside OnMessage when set.
	onMessage func()
}

func newSink() *chanSink {
	return &chanSink{events: make(chan droid.Event, 10), subs: make(chan droid.Submission, 10)}
}

func (s *chanSink) OnMessage(_ context.Context, ev droid.Event) bool {
	if s.onMessage != nil {
		s.onMessage()
	}
	s.events <- ev
	return true
}

func (s *chanSink) OnSubmission(_ context.Context, sub droid.Submission) bool {
	s.subs <- sub
	return true
}

func (s *chanSink) OnReactionAdded(_ context.Context, ev droid.Event) bool {
	s.events <- ev
	return true
}

func (s *chanSink) OnReactionRemoved(_ context.Context, ev droid.Event) bool {
	s.events <- ev
	return true
}

func (s *chanSink) next(t *testing.T) droid.Event {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return droid.Event{}
	}
}

func (s *chanSink) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-s.events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func startRTM(t *testing.T, f *fakeSlack) (*Adapter, *chanSink, *websocket.Conn) {
	t.Helper()
	return startRTMWith(t, f, newSink())
}

func startRTMWith(t *testing.T, f *fakeSlack, sink *chanSink) (*Adapter, *chanSink, *websocket.Conn) {
	t.Helper()
	a := New("sample", "xoxb-test", Options{BaseURL: f.server.URL + "/api/", ReconnectDelay: 10 * time.Millisecond})
	if err := a.Start(context.Background(), sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { a.Disconnect() })

	select {
	case conn := <-f.conns:
		return a, sink, conn
	case <-time.After(2 * time.Second):
		t.Fatal("adapter never dialed the rtm socket")
		return nil, nil, nil
	}
}

func TestStartResolvesIdentity(t *testing.T) {
	f := newFakeSlack(t)
	a, _, _ := startRTM(t, f)
	if got := a.BotUserID(); got != "UBOT" {
		t.Errorf("BotUserID = %q, want UBOT", got)
	}
}

func TestStartInvalidToken(t *testing.T) {
	f := newFakeSlack(t)
	a := New("sample", "bad", Options{BaseURL: f.server.URL + "/api/"})
	err := a.Start(context.Background(), newSink())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != "invalid_auth" || apiErr.Method != "auth.test" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestRTMMessageFrame(t *testing.T) {
	f := newFakeSlack(t)
	_, sink, conn := startRTM(t, f)

	frame := `{"type":"message","user":"U1","text":"ping","channel":"C1","ts":"1.000"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatal(err)
	}

	ev := sink.next(t)
	if ev.Type != droid.EventMessage || ev.Text != "ping" || ev.Timestamp != "1.000" {
		t.Errorf("event = %+v", ev)
	}
	if ev.User.Name != "alice" || ev.User.DisplayName != "Alice" {
		t.Errorf("user = %+v", ev.User)
	}
	if ev.Channel.Name != "general" || ev.Channel.IsIM {
		t.Errorf("channel = %+v", ev.Channel)
	}
}

func TestRTMDirectMessage(t *testing.T) {
	f := newFakeSlack(t)
	_, sink, conn := startRTM(t, f)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","user":"U1","text":"hi","channel":"D1","ts":"2.000"}`))
	ev := sink.next(t)
	if !ev.Channel.IsIM || ev.Channel.Name != "alice" {
		t.Errorf("channel = %+v", ev.Channel)
	}
}

func TestRTMReactionFrame(t *testing.T) {
	f := newFakeSlack(t)
	_, sink, conn := startRTM(t, f)

	frame := `{"type":"reaction_added","user":"U2","reaction":"thumbsup","item":{"type":"message","channel":"C1","ts":"3.000"}}`
	conn.WriteMessage(websocket.TextMessage, []byte(frame))

	ev := sink.next(t)
	if ev.Type != droid.EventReactionAdded || ev.Reaction != "thumbsup" || ev.Timestamp != "3.000" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Channel.ID != "C1" || ev.User.Name != "bob" {
		t.Errorf("event = %+v", ev)
	}
}

func TestRTMSkipsBotAndEditedMessages(t *testing.T) {
	f := newFakeSlack(t)
	_, sink, conn := startRTM(t, f)

	for _, frame := range []string{
		`{"type":"message","user":"UBOT","text":"own","channel":"C1"}`,
		`{"type":"message","bot_id":"B1","text":"bot","channel":"C1"}`,
		`{"type":"message","subtype":"message_changed","channel":"C1"}`,
		`{"type":"hello"}`,
		`not json`,
	} {
		conn.WriteMessage(websocket.TextMessage, []byte(frame))
	}
	sink.none(t)
}

func TestDisconnectStopsReadLoop(t *testing.T) {
	f := newFakeSlack(t)
	a, _, _ := startRTM(t, f)

	done := make(chan error, 1)
	go func() { done <- a.Disconnect() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect did not return")
	}
	if err := a.Disconnect(); err != nil {
		t.Errorf("second Disconnect: %v", err)
	}
}

func TestOutboundCalls(t *testing.T) {
	f := newFakeSlack(t)
	a, _, _ := startRTM(t, f)
	ctx := context.Background()

	if err := a.Text(ctx, "Pong!", "C1"); err != nil {
		t.Fatalf("Text: %v", err)
	}
	posts := f.callsTo("chat.postMessage")
	if len(posts) != 1 || posts[0]["text"] != "Pong!" || posts[0]["channel"] != "C1" {
		t.Errorf("chat.postMessage = %v", posts)
	}

	if err := a.Attachment(ctx, droid.Attachment{Title: "Report"}, "C1"); err != nil {
		t.Fatalf("Attachment: %v", err)
	}
	posts = f.callsTo("chat.postMessage")
	if len(posts) != 2 || posts[1]["attachments"] == nil {
		t.Errorf("attachment post = %v", posts)
	}

	if err := a.AddReaction(ctx, droid.Reaction{Emoji: "heart", ChannelID: "C1", Timestamp: "1.0"}); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	reactions := f.callsTo("reactions.add")
	if len(reactions) != 1 || reactions[0]["name"] != "heart" || reactions[0]["timestamp"] != "1.0" {
		t.Errorf("reactions.add = %v", reactions)
	}

	if err := a.RemoveReaction(ctx, droid.Reaction{Emoji: "heart", ChannelID: "C1", Timestamp: "1.0"}); err != nil {
		t.Fatalf("RemoveReaction: %v", err)
	}
	if len(f.callsTo("reactions.remove")) != 1 {
		t.Error("reactions.remove not called")
	}

	if err := a.Upload(ctx, droid.File{Name: "a.txt", Content: strings.NewReader("data")}, "C1"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	uploads := f.callsTo("files.upload")
	if len(uploads) != 1 || uploads[0]["file"] != "data" || uploads[0]["channels"] != "C1" {
		t.Errorf("files.upload = %v", uploads)
	}

	if err := a.Dialog(ctx, droid.Dialog{CallbackID: "cb", Title: "T"}, "trig"); err != nil {
		t.Fatalf("Dialog: %v", err)
	}
	dialogs := f.callsTo("dialog.open")
	if len(dialogs) != 1 || dialogs[0]["trigger_id"] != "trig" {
		t.Errorf("dialog.open = %v", dialogs)
	}
}

func TestNameLookups(t *testing.T) {
	f := newFakeSlack(t)
	a, _, _ := startRTM(t, f)

	if ch, ok := a.ChannelByName("#general"); !ok || ch.ID != "C1" {
		t.Errorf("ChannelByName(#general) = %+v, %v", ch, ok)
	}
	if _, ok := a.ChannelByName("secret"); ok {
		t.Error("ChannelByName should not find private groups")
	}
	if ch, ok := a.ChannelOrGroupByName("secret"); !ok || ch.ID != "G1" {
		t.Errorf("ChannelOrGroupByName(secret) = %+v, %v", ch, ok)
	}
	if ch, ok := a.DMByName("@alice"); !ok || ch.ID != "D1" || !ch.IsIM {
		t.Errorf("DMByName(@alice) = %+v, %v", ch, ok)
	}
	if _, ok := a.DMByName("bob"); ok {
		t.Error("DMByName(bob) found a DM that does not exist")
	}
}

func startEvents(t *testing.T, f *fakeSlack, secret string) (*Hub, *chanSink, *httptest.Server) {
	t.Helper()
	hub := NewHub(secret, nil)
	a := New("sample", "xoxb-test", Options{BaseURL: f.server.URL + "/api/", Mode: ModeEvents, Hub: hub})
	sink := newSink()
	if err := a.Start(context.Background(), sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { a.Disconnect() })

	r := chi.NewRouter()
	RegisterRoutes(r, hub)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, sink, srv
}

func postEvent(t *testing.T, url, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestEventsURLVerification(t *testing.T) {
	f := newFakeSlack(t)
	_, _, srv := startEvents(t, f, "")

	resp := postEvent(t, srv.URL+"/api/slack/events/sample", `{"type":"url_verification","challenge":"abc123"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got map[string]string
	json.NewDecoder(resp.Body).Decode(&got)
	if got["challenge"] != "abc123" {
		t.Errorf("challenge = %q", got["challenge"])
	}
}

func TestEventsCallbackDispatch(t *testing.T) {
	f := newFakeSlack(t)
	_, sink, srv := startEvents(t, f, "")

	body := `{"type":"event_callback","event":{"type":"message","user":"U1","text":"ping","channel":"C1","ts":"1.0"}}`
	resp := postEvent(t, srv.URL+"/api/slack/events/sample", body, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	ev := sink.next(t)
	if ev.Text != "ping" || ev.Channel.Name != "general" {
		t.Errorf("event = %+v", ev)
	}

	resp = postEvent(t, srv.URL+"/api/slack/events/ghost", body, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown droid status = %d", resp.StatusCode)
	}
}

func TestEventsInvalidJSON(t *testing.T) {
	f := newFakeSlack(t)
	_, _, srv := startEvents(t, f, "")

	resp := postEvent(t, srv.URL+"/api/slack/events/sample", "not json", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestEventsSignatureVerification(t *testing.T) {
	f := newFakeSlack(t)
	_, _, srv := startEvents(t, f, "shh")
	body := `{"type":"url_verification","challenge":"c"}`

	resp := postEvent(t, srv.URL+"/api/slack/events/sample", body, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unsigned status = %d, want 401", resp.StatusCode)
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	header := http.Header{}
	header.Set("X-Slack-Request-Timestamp", ts)
	header.Set("X-Slack-Signature", Sign("shh", ts, []byte(body)))
	resp = postEvent(t, srv.URL+"/api/slack/events/sample", body, header)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("signed status = %d, want 200", resp.StatusCode)
	}

	old := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	header.Set("X-Slack-Request-Timestamp", old)
	header.Set("X-Slack-Signature", Sign("shh", old, []byte(body)))
	resp = postEvent(t, srv.URL+"/api/slack/events/sample", body, header)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("stale status = %d, want 401", resp.StatusCode)
	}
}

func TestEventsModeRequiresHub(t *testing.T) {
	if _, err := NewFactory(Options{Mode: ModeEvents})("x", "t"); err == nil {
		t.Error("expected error without hub")
	}
	a, err := NewFactory(Options{})("x", "t")
	if err != nil || a == nil {
		t.Errorf("rtm factory = %v, %v", a, err)
	}
}

func TestDisconnectFromHandler(t *testing.T) {
	f := newFakeSlack(t)
	sink := newSink()
	self := make(chan *Adapter, 1)
	returned := make(chan error, 1)
	sink.onMessage = func() {
		a := <-self
		returned <- a.Disconnect()
	}
	a, _, conn := startRTMWith(t, f, sink)
	self <- a

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","user":"U1","text":"unregister me","channel":"C1"}`))
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect called from a handler did not return")
	}
	sink.next(t)
	if a.Connected() {
		t.Error("adapter still connected after Disconnect")
	}
}

func TestRTMDirectoryFrames(t *testing.T) {
	f := newFakeSlack(t)
	a, sink, conn := startRTM(t, f)

	for _, frame := range []string{
		`{"type":"channel_created","channel":{"id":"C9","name":"allowed","creator":"U1"}}`,
		`{"type":"team_join","user":{"id":"U9","name":"carol","profile":{"display_name":"Carol"}}}`,
		`{"type":"message","user":"U9","text":"secret","channel":"C9","ts":"4.000"}`,
	} {
		conn.WriteMessage(websocket.TextMessage, []byte(frame))
	}
	ev := sink.next(t)
	if ev.Channel != (droid.Channel{ID: "C9", Name: "allowed"}) {
		t.Errorf("channel = %+v, want allowed", ev.Channel)
	}
	if ev.User.Name != "carol" || ev.User.DisplayName != "Carol" {
		t.Errorf("user = %+v", ev.User)
	}
	if ch, ok := a.ChannelByName("#allowed"); !ok || ch.ID != "C9" {
		t.Errorf("ChannelByName(#allowed) = %+v, %v", ch, ok)
	}

	for _, frame := range []string{
		`{"type":"channel_rename","channel":{"id":"C9","name":"renamed","created":1}}`,
		`{"type":"im_created","user":"U2","channel":{"id":"D2"}}`,
		`{"type":"group_joined","channel":{"id":"G2","name":"ops"}}`,
		`{"type":"message","user":"U2","text":"hi","channel":"D2","ts":"5.000"}`,
	} {
		conn.WriteMessage(websocket.TextMessage, []byte(frame))
	}
	ev = sink.next(t)
	if !ev.Channel.IsIM || ev.Channel.Name != "bob" {
		t.Errorf("im channel = %+v", ev.Channel)
	}
	if _, ok := a.ChannelByName("allowed"); ok {
		t.Error("old channel name still resolves after rename")
	}
	if ch, ok := a.ChannelByName("renamed"); !ok || ch.ID != "C9" {
		t.Errorf("ChannelByName(renamed) = %+v, %v", ch, ok)
	}
	if ch, ok := a.DMByName("bob"); !ok || ch.ID != "D2" {
		t.Errorf("DMByName(bob) = %+v, %v", ch, ok)
	}
	if _, ok := a.ChannelByName("ops"); ok {
		t.Error("private group resolved as a public channel")
	}
	if ch, ok := a.ChannelOrGroupByName("ops"); !ok || ch.ID != "G2" {
		t.Errorf("ChannelOrGroupByName(ops) = %+v, %v", ch, ok)
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRTMReconnectsAfterConnectionLoss(t *testing.T) {
	f := newFakeSlack(t)
	a, sink, conn := startRTM(t, f)
	if !a.Connected() {
		t.Fatal("adapter not connected after Start")
	}

	f.rtmDown.Store(true)
	conn.Close()
	eventually(t, func() bool { return !a.Connected() }, "adapter still reports connected after the socket dropped")

	f.rtmDown.Store(false)
	var next *websocket.Conn
	select {
	case next = <-f.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("adapter never redialled")
	}
	eventually(t, a.Connected, "adapter did not report the new connection")

	next.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","user":"U1","text":"back","channel":"C1","ts":"6.000"}`))
	if ev := sink.next(t); ev.Text != "back" {
		t.Errorf("event = %+v", ev)
	}
	if n := len(f.callsTo("rtm.connect")); n < 3 {
		t.Errorf("rtm.connect called %d times, want a failed attempt and a retry", n)
	}
}

func TestEventsRedeliveryDropped(t *testing.T) {
	f := newFakeSlack(t)
	_, sink, srv := startEvents(t, f, "")
	target := srv.URL + "/api/slack/events/sample"

	first := `{"type":"event_callback","event_id":"Ev1","event":{"type":"message","user":"U1","text":"one","channel":"C1","ts":"1.0"}}`
	second := `{"type":"event_callback","event_id":"Ev2","event":{"type":"message","user":"U1","text":"two","channel":"C1","ts":"2.0"}}`
	postEvent(t, target, first, nil)
	postEvent(t, target, second, nil)

	retry := http.Header{}
	retry.Set("X-Slack-Retry-Num", "1")
	retry.Set("X-Slack-Retry-Reason", "http_timeout")
	resp := postEvent(t, target, first, retry)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("retry status = %d, want 200", resp.StatusCode)
	}

	if ev := sink.next(t); ev.Text != "one" {
		t.Errorf("first event = %q", ev.Text)
	}
	if ev := sink.next(t); ev.Text != "two" {
		t.Errorf("second event = %q", ev.Text)
	}
	sink.none(t)
}

func TestEventsDirectoryUpdate(t *testing.T) {
	f := newFakeSlack(t)
	_, sink, srv := startEvents(t, f, "")
	target := srv.URL + "/api/slack/events/sample"

	postEvent(t, target, `{"type":"event_callback","event":{"type":"channel_created","channel":{"id":"C9","name":"allowed"}}}`, nil)
	postEvent(t, target, `{"type":"event_callback","event":{"type":"message","user":"U1","text":"secret","channel":"C9","ts":"1.0"}}`, nil)
	if ev := sink.next(t); ev.Channel.Name != "allowed" {
		t.Errorf("channel = %+v", ev.Channel)
	}
}

func postInteractive(t *testing.T, target, payload string, header http.Header) *http.Response {
	t.Helper()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return postEvent(t, target, url.Values{"payload": {payload}}.Encode(), header)
}

func TestInteractiveDialogSubmission(t *testing.T) {
	f := newFakeSlack(t)
	_, sink, srv := startEvents(t, f, "")
	target := srv.URL + "/api/slack/interactive/sample"

	payload := `{"type":"dialog_submission","callback_id":"sample-feedback","state":"s1",` +
		`"user":{"id":"U1","name":"alice"},"channel":{"id":"C1","name":"general"},` +
		`"submission":{"comment":"nice"}}`
	resp := postInteractive(t, target, payload, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	select {
	case sub := <-sink.subs:
		if sub.CallbackID != "sample-feedback" || sub.Values["comment"] != "nice" || sub.State != "s1" {
			t.Errorf("submission = %+v", sub)
		}
		if sub.User.Name != "alice" || sub.Channel.Name != "general" {
			t.Errorf("submission origin = %+v %+v", sub.User, sub.Channel)
		}
		if sub.Payload() != (droid.Payload{UserID: "U1", ChannelID: "C1"}) {
			t.Errorf("payload = %+v", sub.Payload())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submission never delivered")
	}

	resp = postInteractive(t, target, `{"type":"block_actions"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("block_actions status = %d", resp.StatusCode)
	}
	select {
	case sub := <-sink.subs:
		t.Errorf("unexpected submission %+v", sub)
	case <-time.After(100 * time.Millisecond):
	}

	if resp := postInteractive(t, srv.URL+"/api/slack/interactive/ghost", payload, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown droid status = %d", resp.StatusCode)
	}
	if resp := postEvent(t, target, "nothing=here", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing payload status = %d", resp.StatusCode)
	}
	if resp := postInteractive(t, target, "not json", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad payload status = %d", resp.StatusCode)
	}
}

func TestInteractiveSignatureVerification(t *testing.T) {
	f := newFakeSlack(t)
	_, _, srv := startEvents(t, f, "shh")
	target := srv.URL + "/api/slack/interactive/sample"
	payload := `{"type":"dialog_submission","callback_id":"cb","user":{"id":"U1"},"channel":{"id":"C1"}}`

	if resp := postInteractive(t, target, payload, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unsigned status = %d, want 401", resp.StatusCode)
	}

	body := url.Values{"payload": {payload}}.Encode()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("X-Slack-Request-Timestamp", ts)
	header.Set("X-Slack-Signature", Sign("shh", ts, []byte(body)))
	if resp := postEvent(t, target, body, header); resp.StatusCode != http.StatusOK {
		t.Errorf("signed status = %d, want 200", resp.StatusCode)
	}
}

func TestInteractiveInRTMMode(t *testing.T) {
	f := newFakeSlack(t)
	hub := NewHub("", nil)
	a := New("sample", "xoxb-test", Options{BaseURL: f.server.URL + "/api/", Hub: hub})
	sink := newSink()
	if err := a.Start(context.Background(), sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { a.Disconnect() })
	<-f.conns

	r := chi.NewRouter()
	RegisterRoutes(r, hub)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	payload := `{"type":"dialog_submission","callback_id":"cb","user":{"id":"U1"},"channel":{"id":"C1"}}`
	if resp := postInteractive(t, srv.URL+"/api/slack/interactive/sample", payload, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	select {
	case sub := <-sink.subs:
		if sub.CallbackID != "cb" {
			t.Errorf("submission = %+v", sub)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submission never delivered")
	}

	body := `{"type":"event_callback","event":{"type":"message","user":"U1","text":"ping","channel":"C1"}}`
	if resp := postEvent(t, srv.URL+"/api/slack/events/sample", body, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("events in rtm mode status = %d, want 404", resp.StatusCode)
	}
}
