// Package sample is a small builtin extension: ping/pong, echo with
// remembered context, a channel-restricted secret, a reaction listener and
// a feedback dialog.
package sample

import (
	"context"
	"embed"
	"io/fs"

	"github.com/ziadkadry99/gynoid/internal/droid"
)

// Name is the extension name.
const Name = "sample-ext"

// FeedbackCallback is the callback id of the feedback dialog.
const FeedbackCallback = "sample-feedback"

var feedbackDialog = droid.Dialog{
	CallbackID:  FeedbackCallback,
	Title:       "Feedback",
	SubmitLabel: "Send",
	Elements: []droid.DialogElement{
		{Type: "textarea", Label: "Comment", Name: "comment"},
	},
}

//go:embed droid.yaml
var files embed.FS

// Files returns the extension's definition for the builtin extender.
func Files() fs.FS { return files }

// Register adds the extension's factory to catalog.
func Register(catalog *droid.Catalog) {
	catalog.Register(Name, New)
}

// New builds the handler table.
func New(env droid.Env) (droid.HandlerTable, error) {
	contexts := env.Contexts
	env.On(FeedbackCallback, func(_ context.Context, s droid.Submission) error {
		if contexts == nil {
			return nil
		}
		prev, ok := contexts.FromPayload(s.Payload())
		if !ok {
			return nil
		}
		contexts.Forget(prev.Request.ContextID())
		return prev.Response.Text("Thanks for the feedback: " + s.Values["comment"])
	})
	return droid.Handlers{
		"ping": func(_ *droid.Request, res *droid.Response) error {
			return res.Text("Pong!")
		},
		"echo": func(req *droid.Request, res *droid.Response) error {
			if contexts != nil {
				contexts.Save(req, res)
			}
			return res.Text(req.Param("text"))
		},
		"again": func(req *droid.Request, res *droid.Response) error {
			if contexts == nil {
				return res.Text("Nothing to repeat")
			}
			prev, ok := contexts.Get(req.ContextID())
			if !ok {
				return res.Text("Nothing to repeat")
			}
			return res.Text(prev.Request.Param("text"))
		},
		"secret": func(_ *droid.Request, res *droid.Response) error {
			secret, ok := env.Keys["SECRET"]
			if !ok {
				return res.Text("No secret configured")
			}
			return res.Text("The secret is " + secret)
		},
		"feedback": func(req *droid.Request, res *droid.Response) error {
			if contexts != nil {
				contexts.Save(req, res)
			}
			if err := res.Dialog(feedbackDialog, ""); err != nil {
				return res.Text("Unable to open the feedback form: " + err.Error())
			}
			return nil
		},
		"thanks": func(req *droid.Request, res *droid.Response) error {
			return res.AddReaction("heart", req.Message.Timestamp)
		},
	}, nil
}
