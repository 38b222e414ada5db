package droid

import "sync"

// Context is a saved exchange that a later event from the same user in the
// same channel can pick up.
type Context struct {
	Request  *Request
	Response *Response
}

// Payload identifies the user and channel of an interactive callback.
type Payload struct {
	UserID    string
	ChannelID string
}

// ContextID is the key contexts are stored under.
func ContextID(userID, channelID string) string {
	return userID + "-" + channelID
}

// ContextStore holds the last saved exchange per user and channel.
// Entries never expire; handlers Forget them when a flow completes.
type ContextStore struct {
	mu      sync.Mutex
	entries map[string]Context
}

// NewContextStore returns an empty store.
func NewContextStore() *ContextStore {
	return &ContextStore{entries: make(map[string]Context)}
}

// Save records req and res under the sender and channel of req.
func (s *ContextStore) Save(req *Request, res *Response) {
	id := req.ContextID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = Context{Request: req, Response: res}
}

// Get returns the context stored under id.
func (s *ContextStore) Get(id string) (Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[id]
	return c, ok
}

// FromPayload returns the context for an interactive callback.
func (s *ContextStore) FromPayload(p Payload) (Context, bool) {
	return s.Get(ContextID(p.UserID, p.ChannelID))
}

// Forget drops the context stored under id.
func (s *ContextStore) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Len returns the number of stored contexts.
func (s *ContextStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
