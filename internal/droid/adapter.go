package droid

import (
	"context"
	"io"
)

// EventType identifies the kind of inbound platform event.
type EventType string

const (
	EventMessage         EventType = "message"
	EventReactionAdded   EventType = "reaction_added"
	EventReactionRemoved EventType = "reaction_removed"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventMessage, EventReactionAdded, EventReactionRemoved:
		return true
	}
	return false
}

// User is a platform user.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
}

// Channel is a conversation: a public or private channel, or a direct
// message when IsIM is set.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IsIM bool   `json:"is_im"`
}

// Event is an inbound platform event as decoded by an Adapter.
type Event struct {
	Type      EventType
	Timestamp string
	ThreadID  string
	Text      string
	User      User
	Channel   Channel
	Reaction  string
	TriggerID string
}

// Attachment is a rich message attachment.
type Attachment struct {
	Fallback string            `json:"fallback,omitempty"`
	Color    string            `json:"color,omitempty"`
	Pretext  string            `json:"pretext,omitempty"`
	Title    string            `json:"title,omitempty"`
	TitleURL string            `json:"title_link,omitempty"`
	Text     string            `json:"text,omitempty"`
	ImageURL string            `json:"image_url,omitempty"`
	Fields   []AttachmentField `json:"fields,omitempty"`
}

// AttachmentField is one short key/value row of an Attachment.
type AttachmentField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"`
}

// File is an upload.
type File struct {
	Name     string
	Title    string
	Filetype string
	Content  io.Reader
}

// Reaction adds or removes an emoji on a message.
type Reaction struct {
	Emoji     string
	ChannelID string
	Timestamp string
}

// Dialog is an interactive form opened in response to a trigger.
type Dialog struct {
	CallbackID  string          `json:"callback_id"`
	Title       string          `json:"title"`
	SubmitLabel string          `json:"submit_label,omitempty"`
	State       string          `json:"state,omitempty"`
	Elements    []DialogElement `json:"elements"`
}

// DialogElement is one input of a Dialog.
type DialogElement struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}

// EventSink receives decoded events from an Adapter. Each call returns
// whether a listener consumed the event.
type EventSink interface {
	OnMessage(ctx context.Context, ev Event) bool
	OnReactionAdded(ctx context.Context, ev Event) bool
	OnReactionRemoved(ctx context.Context, ev Event) bool
	OnSubmission(ctx context.Context, s Submission) bool
}

// Adapter is a droid's connection to the messaging platform.
type Adapter interface {
	// Start connects and begins delivering events to sink. It returns once
	// the connection is established; delivery continues in the background
	// until Disconnect.
	Start(ctx context.Context, sink EventSink) error
	Disconnect() error
	// BotUserID is the platform id of the droid itself, used to detect
	// explicit mentions. Empty before Start.
	BotUserID() string

	Text(ctx context.Context, text, targetID string) error
	Attachment(ctx context.Context, attachment Attachment, targetID string) error
	Upload(ctx context.Context, file File, targetID string) error
	AddReaction(ctx context.Context, r Reaction) error
	RemoveReaction(ctx context.Context, r Reaction) error
	Dialog(ctx context.Context, d Dialog, triggerID string) error

	ChannelByName(name string) (Channel, bool)
	DMByName(name string) (Channel, bool)
	ChannelOrGroupByName(name string) (Channel, bool)
}

// ConnectionReporter is implemented by adapters whose connection can drop
// and come back on its own after Start.
type ConnectionReporter interface {
	Connected() bool
}

// RequestBuilder lets an Adapter supply its own Request and Response
// values. Adapters that do not implement it get the defaults.
type RequestBuilder interface {
	BuildRequest(in Interception) *Request
	BuildResponse(ctx context.Context, in Interception) *Response
}

// AdapterFactory builds the platform connection for a droid.
type AdapterFactory func(name, token string) (Adapter, error)
