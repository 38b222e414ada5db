package droid

// Request is the inbound side of a handler invocation.
type Request struct {
	Droid   string
	Message Message
	From    User
	// To and Channel are the same conversation; both names are kept for
	// handlers written against either.
	To      Channel
	Channel Channel
	Params  map[string]string
}

// NewRequest builds the request for an interception.
func NewRequest(droid string, in Interception) *Request {
	from := in.Message.From
	if from.DisplayName != "" {
		from.Name = from.DisplayName
	}
	params := in.Params
	if params == nil {
		params = map[string]string{}
	}
	return &Request{
		Droid:   droid,
		Message: in.Message,
		From:    from,
		To:      in.Message.Channel,
		Channel: in.Message.Channel,
		Params:  params,
	}
}

// Param returns a captured parameter, or "" when absent.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// ContextID is the key under which this request's context is saved.
func (r *Request) ContextID() string {
	return ContextID(r.Message.From.ID, r.Message.Channel.ID)
}
