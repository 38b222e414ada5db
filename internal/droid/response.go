package droid

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTarget is returned when a reply target names no known user or
// channel.
var ErrUnknownTarget = errors.New("unknown target")

// Response sends replies for one intercepted event. By default replies go
// to the conversation the event came from; To redirects them.
type Response struct {
	ctx     context.Context
	adapter Adapter
	message Message
	target  string
}

// NewResponse builds the response for an interception.
func NewResponse(ctx context.Context, adapter Adapter, in Interception) *Response {
	return &Response{ctx: ctx, adapter: adapter, message: in.Message}
}

// To returns a copy of the response that targets a user ("@name"), a
// channel ("#name") or a bare name, trying direct messages first.
func (r *Response) To(target string) *Response {
	c := *r
	c.target = target
	return &c
}

// Message returns the message being answered.
func (r *Response) Message() Message { return r.message }

// ChannelByName looks up a channel through the adapter.
func (r *Response) ChannelByName(name string) (Channel, bool) {
	return r.adapter.ChannelByName(name)
}

func (r *Response) targetID() (string, error) {
	if r.target == "" {
		return r.message.Channel.ID, nil
	}
	name := strings.TrimLeft(r.target, "@#")
	if ch, ok := r.adapter.DMByName(name); ok {
		return ch.ID, nil
	}
	if ch, ok := r.adapter.ChannelOrGroupByName(name); ok {
		return ch.ID, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTarget, r.target)
}

// Text sends a plain text message.
func (r *Response) Text(text string) error {
	id, err := r.targetID()
	if err != nil {
		return err
	}
	return r.adapter.Text(r.ctx, text, id)
}

// Textf formats and sends a plain text message.
func (r *Response) Textf(format string, args ...any) error {
	return r.Text(fmt.Sprintf(format, args...))
}

// Attachment sends a rich attachment.
func (r *Response) Attachment(a Attachment) error {
	id, err := r.targetID()
	if err != nil {
		return err
	}
	return r.adapter.Attachment(r.ctx, a, id)
}

// Upload sends a file.
func (r *Response) Upload(f File) error {
	id, err := r.targetID()
	if err != nil {
		return err
	}
	return r.adapter.Upload(r.ctx, f, id)
}

// AddReaction reacts to a message; an empty timestamp means the message
// being answered.
func (r *Response) AddReaction(emoji, timestamp string) error {
	reaction, err := r.reaction(emoji, timestamp)
	if err != nil {
		return err
	}
	return r.adapter.AddReaction(r.ctx, reaction)
}

// Reaction is AddReaction.
func (r *Response) Reaction(emoji, timestamp string) error {
	return r.AddReaction(emoji, timestamp)
}

// RemoveReaction removes a reaction added by the droid.
func (r *Response) RemoveReaction(emoji, timestamp string) error {
	reaction, err := r.reaction(emoji, timestamp)
	if err != nil {
		return err
	}
	return r.adapter.RemoveReaction(r.ctx, reaction)
}

func (r *Response) reaction(emoji, timestamp string) (Reaction, error) {
	id, err := r.targetID()
	if err != nil {
		return Reaction{}, err
	}
	if timestamp == "" {
		timestamp = r.message.Timestamp
	}
	return Reaction{Emoji: StripEmoji(emoji), ChannelID: id, Timestamp: timestamp}, nil
}

// Dialog opens an interactive dialog. An empty trigger id uses the one
// carried by the message being answered.
func (r *Response) Dialog(d Dialog, triggerID string) error {
	if triggerID == "" {
		triggerID = r.message.TriggerID
	}
	if triggerID == "" {
		return errors.New("dialog needs a trigger id")
	}
	return r.adapter.Dialog(r.ctx, d, triggerID)
}
