package droid

import (
	"strings"

	"github.com/ziadkadry99/gynoid/internal/acl"
)

// Message is an Event normalised for matching: a leading mention of the
// droid is stripped from the text and recorded in Mentioned.
type Message struct {
	Type      EventType
	Timestamp string
	ThreadID  string
	Text      string
	From      User
	Channel   Channel
	Mentioned bool
	Reaction  string
	TriggerID string
}

func (m Message) aclMessage() acl.Message {
	return acl.Message{
		UserID:      m.From.ID,
		ChannelName: m.Channel.Name,
		IsDM:        m.Channel.IsIM,
		Mentioned:   m.Mentioned,
	}
}

// subject is the text listeners match against.
func (m Message) subject() string {
	if m.Type == EventReactionAdded || m.Type == EventReactionRemoved {
		return m.Reaction
	}
	return m.Text
}

// ParseMessage normalises ev for a droid whose platform id is botID.
func ParseMessage(ev Event, botID string) Message {
	msg := Message{
		Type:      ev.Type,
		Timestamp: ev.Timestamp,
		ThreadID:  ev.ThreadID,
		Text:      strings.TrimSpace(ev.Text),
		From:      ev.User,
		Channel:   ev.Channel,
		Reaction:  StripEmoji(ev.Reaction),
		TriggerID: ev.TriggerID,
	}
	if msg.Type == "" {
		msg.Type = EventMessage
	}
	if botID == "" {
		return msg
	}

	for _, mention := range []string{"<@" + botID + ">", "<@" + botID + "|"} {
		if !strings.HasPrefix(msg.Text, mention) {
			continue
		}
		rest := msg.Text[len(mention):]
		if strings.HasSuffix(mention, "|") {
			if i := strings.IndexByte(rest, '>'); i >= 0 {
				rest = rest[i+1:]
			}
		}
		msg.Text = strings.TrimSpace(strings.TrimLeft(rest, " :,"))
		msg.Mentioned = true
		return msg
	}
	if strings.Contains(msg.Text, "<@"+botID) {
		msg.Mentioned = true
	}
	return msg
}

// StripEmoji reduces ":thumbsup::skin-tone-2:" to "thumbsup".
func StripEmoji(emoji string) string {
	e := strings.TrimPrefix(emoji, ":")
	if i := strings.Index(e, "::skin-tone"); i >= 0 {
		e = e[:i]
	}
	if i := strings.Index(e, ":skin-tone"); i >= 0 {
		e = e[:i]
	}
	return strings.TrimSuffix(e, ":")
}
