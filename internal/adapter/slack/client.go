package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ziadkadry99/gynoid/internal/droid"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api/"

// APIError is a Web API response with "ok": false.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// Client is a minimal Slack Web API client authenticated with a bot token.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL. An empty baseURL means
// DefaultBaseURL and a nil hc gets a client with a 30s timeout.
func NewClient(token, baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{token: token, baseURL: baseURL, http: hc}
}

type apiStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type cursorMeta struct {
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

func (c *Client) do(req *http.Request, method string, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("slack %s: reading response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s: HTTP %d", method, resp.StatusCode)
	}

	var status apiStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("slack %s: decoding response: %w", method, err)
	}
	if !status.OK {
		return &APIError{Method: method, Code: status.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("slack %s: decoding response: %w", method, err)
	}
	return nil
}

// postForm calls a method with form-encoded arguments.
func (c *Client) postForm(ctx context.Context, method string, args url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, strings.NewReader(args.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, method, out)
}

// postJSON calls a method with a JSON body.
func (c *Client) postJSON(ctx context.Context, method string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("slack %s: encoding request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return c.do(req, method, out)
}

// Identity is the authenticated bot.
type Identity struct {
	UserID string `json:"user_id"`
	User   string `json:"user"`
	TeamID string `json:"team_id"`
}

// AuthTest checks the token and returns the bot identity.
func (c *Client) AuthTest(ctx context.Context) (Identity, error) {
	var id Identity
	err := c.postForm(ctx, "auth.test", url.Values{}, &id)
	return id, err
}

// RTMConnect returns the websocket URL of a new real-time session.
func (c *Client) RTMConnect(ctx context.Context) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.postForm(ctx, "rtm.connect", url.Values{}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

type member struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
	Profile struct {
		DisplayName string `json:"display_name"`
		RealName    string `json:"real_name"`
	} `json:"profile"`
}

func (m member) user() droid.User {
	return droid.User{ID: m.ID, Name: m.Name, DisplayName: m.Profile.DisplayName}
}

// Users lists workspace members.
func (c *Client) Users(ctx context.Context) ([]droid.User, error) {
	var users []droid.User
	cursor := ""
	for {
		var resp struct {
			Members []member `json:"members"`
			cursorMeta
		}
		args := url.Values{"limit": {"200"}}
		if cursor != "" {
			args.Set("cursor", cursor)
		}
		if err := c.postForm(ctx, "users.list", args, &resp); err != nil {
			return nil, err
		}
		for _, m := range resp.Members {
			if m.Deleted {
				continue
			}
			users = append(users, m.user())
		}
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return users, nil
		}
	}
}

// Conversation is a channel, private group or IM as listed by the API.
type Conversation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsIM      bool   `json:"is_im"`
	IsPrivate bool   `json:"is_private"`
	User      string `json:"user"`
}

// Conversations lists the channels, groups and IMs the bot can see.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	cursor := ""
	for {
		var resp struct {
			Channels []Conversation `json:"channels"`
			cursorMeta
		}
		args := url.Values{
			"types":            {"public_channel,private_channel,im"},
			"exclude_archived": {"true"},
			"limit":            {"200"},
		}
		if cursor != "" {
			args.Set("cursor", cursor)
		}
		if err := c.postForm(ctx, "conversations.list", args, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Channels...)
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return out, nil
		}
	}
}

// PostMessage sends text and attachments to a channel.
func (c *Client) PostMessage(ctx context.Context, channel, text string, attachments []droid.Attachment) error {
	payload := map[string]any{"channel": channel, "as_user": true}
	if text != "" {
		payload["text"] = text
	}
	if len(attachments) > 0 {
		payload["attachments"] = attachments
	}
	return c.postJSON(ctx, "chat.postMessage", payload, nil)
}

// UploadFile uploads f into a channel.
func (c *Client) UploadFile(ctx context.Context, channel string, f droid.File) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"channels": channel,
		"filename": f.Name,
		"title":    f.Title,
		"filetype": f.Filetype,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	if f.Content != nil {
		part, err := w.CreateFormFile("file", f.Name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("slack files.upload: reading content: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"files.upload", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, "files.upload", nil)
}

// AddReaction adds an emoji to a message.
func (c *Client) AddReaction(ctx context.Context, r droid.Reaction) error {
	return c.postForm(ctx, "reactions.add", reactionArgs(r), nil)
}

// RemoveReaction removes an emoji from a message.
func (c *Client) RemoveReaction(ctx context.Context, r droid.Reaction) error {
	return c.postForm(ctx, "reactions.remove", reactionArgs(r), nil)
}

func reactionArgs(r droid.Reaction) url.Values {
	return url.Values{"name": {r.Emoji}, "channel": {r.ChannelID}, "timestamp": {r.Timestamp}}
}

// OpenDialog opens an interactive dialog.
func (c *Client) OpenDialog(ctx context.Context, triggerID string, d droid.Dialog) error {
	return c.postJSON(ctx, "dialog.open", map[string]any{"trigger_id": triggerID, "dialog": d}, nil)
}
