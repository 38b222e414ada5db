package droid

import (
	"fmt"

	"github.com/ziadkadry99/gynoid/internal/acl"
)

// Listener binds an event type, a matcher and an access policy to a
// handler. Listeners are immutable once built.
type Listener struct {
	Type        EventType
	Extension   string
	HandlerName string
	Description string
	Matcher     *Matcher
	Policy      acl.Policy
	Handler     HandlerFunc
}

// Interception is a message accepted by a listener, together with the
// parameters its matcher captured.
type Interception struct {
	Message  Message
	Params   map[string]string
	Listener *Listener
}

// Intercept returns the interception when the listener's matcher accepts
// msg and its policy allows it.
func (l *Listener) Intercept(msg Message) (Interception, bool) {
	params, ok := l.Matcher.Match(msg.subject())
	if !ok {
		return Interception{}, false
	}
	if !l.Policy.IsValid(msg.aclMessage()) {
		return Interception{}, false
	}
	return Interception{Message: msg, Params: params, Listener: l}, true
}

// Action is one listener as declared in an extension definition.
type Action struct {
	Handler     string     `yaml:"handler"`
	Type        EventType  `yaml:"type"`
	Description string     `yaml:"description"`
	Patterns    []string   `yaml:"patterns"`
	Aliases     []string   `yaml:"aliases"`
	Reply       string     `yaml:"reply"`
	ACL         acl.Config `yaml:"acl"`
}

// Build resolves the action's handler against core and compiles its
// matcher. An action with a reply and no handler answers with that text.
func (a Action) Build(extension string, core HandlerTable) (*Listener, error) {
	typ := a.Type
	if typ == "" {
		typ = EventMessage
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("action %q: unknown event type %q", a.Handler, a.Type)
	}

	var handler HandlerFunc
	switch {
	case a.Handler != "":
		if core == nil {
			return nil, fmt.Errorf("action %q: extension %s has no handlers", a.Handler, extension)
		}
		h, ok := core.Handler(a.Handler)
		if !ok {
			return nil, fmt.Errorf("action %q: no such handler in extension %s", a.Handler, extension)
		}
		handler = h
	case a.Reply != "":
		handler = replyHandler(a.Reply)
	default:
		return nil, fmt.Errorf("action in extension %s declares neither handler nor reply", extension)
	}

	matcher, err := NewMatcher(a.Patterns, a.Aliases)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", a.Handler, err)
	}

	return &Listener{
		Type:        typ,
		Extension:   extension,
		HandlerName: a.Handler,
		Description: a.Description,
		Matcher:     matcher,
		Policy:      a.ACL.Policy(),
		Handler:     handler,
	}, nil
}

func replyHandler(text string) HandlerFunc {
	return func(_ *Request, res *Response) error {
		return res.Text(text)
	}
}
