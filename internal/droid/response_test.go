package droid_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/gynoid/internal/droid"
	"github.com/ziadkadry99/gynoid/internal/droid/droidtest"
)

func interception(text string) droid.Interception {
	return droid.Interception{
		Message: droid.Message{
			Type:      droid.EventMessage,
			Timestamp: "111.222",
			Text:      text,
			From:      droid.User{ID: "U1", Name: "alice", DisplayName: "Alice A."},
			Channel:   droid.Channel{ID: "C1", Name: "general"},
			TriggerID: "trigger-1",
		},
		Params: map[string]string{"who": "bob"},
	}
}

func TestRequestFields(t *testing.T) {
	req := droid.NewRequest("test", interception("hello"))
	assert.Equal(t, "Alice A.", req.From.Name)
	assert.Equal(t, "C1", req.To.ID)
	assert.Equal(t, req.To, req.Channel)
	assert.Equal(t, "bob", req.Param("who"))
	assert.Equal(t, "", req.Param("missing"))
	assert.Equal(t, "U1-C1", req.ContextID())
}

func TestResponseTargets(t *testing.T) {
	adapter := droidtest.New("UBOT")
	adapter.AddChannel(droid.Channel{ID: "D9", Name: "bob", IsIM: true})
	adapter.AddChannel(droid.Channel{ID: "C7", Name: "ops"})
	res := droid.NewResponse(context.Background(), adapter, interception("x"))

	require.NoError(t, res.Text("origin"))
	require.NoError(t, res.To("@bob").Text("dm"))
	require.NoError(t, res.To("#ops").Text("channel"))
	require.NoError(t, res.To("ops").Textf("count %d", 3))

	err := res.To("#nowhere").Text("lost")
	assert.ErrorIs(t, err, droid.ErrUnknownTarget)

	sent := adapter.Sent()
	require.Len(t, sent, 4)
	assert.Equal(t, "C1", sent[0].TargetID)
	assert.Equal(t, "D9", sent[1].TargetID)
	assert.Equal(t, "C7", sent[2].TargetID)
	assert.Equal(t, "count 3", sent[3].Text)
}

func TestResponseReactionsAndRichMessages(t *testing.T) {
	adapter := droidtest.New("UBOT")
	res := droid.NewResponse(context.Background(), adapter, interception("x"))

	require.NoError(t, res.Reaction(":white_check_mark:", ""))
	require.NoError(t, res.RemoveReaction("eyes", "999.000"))
	require.NoError(t, res.Attachment(droid.Attachment{Title: "Report"}))
	require.NoError(t, res.Upload(droid.File{Name: "log.txt", Content: strings.NewReader("data")}))
	require.NoError(t, res.Dialog(droid.Dialog{CallbackID: "form", Title: "Form"}, ""))

	sent := adapter.Sent()
	require.Len(t, sent, 5)
	assert.Equal(t, droid.Reaction{Emoji: "white_check_mark", ChannelID: "C1", Timestamp: "111.222"}, sent[0].Reaction)
	assert.Equal(t, "reaction_remove", sent[1].Kind)
	assert.Equal(t, "999.000", sent[1].Reaction.Timestamp)
	assert.Equal(t, "Report", sent[2].Attachment.Title)
	assert.Equal(t, "log.txt", sent[3].File.Name)
	assert.Equal(t, "trigger-1", sent[4].TriggerID)
}

func TestDialogWithoutTrigger(t *testing.T) {
	in := interception("x")
	in.Message.TriggerID = ""
	res := droid.NewResponse(context.Background(), droidtest.New(""), in)
	assert.Error(t, res.Dialog(droid.Dialog{}, ""))
}

func TestContexts(t *testing.T) {
	adapter := droidtest.New("UBOT")
	rt, err := droid.New(droid.Options{Name: "d", Adapter: adapter})
	require.NoError(t, err)

	in := interception("start flow")
	req := droid.NewRequest("d", in)
	res := droid.NewResponse(context.Background(), adapter, in)
	rt.SaveContext(req, res)

	c, ok := rt.GetContext("U1-C1")
	require.True(t, ok)
	assert.Same(t, req, c.Request)
	assert.Same(t, res, c.Response)

	c, ok = rt.GetContextFromPayload(droid.Payload{UserID: "U1", ChannelID: "C1"})
	require.True(t, ok)
	assert.Equal(t, "start flow", c.Request.Message.Text)

	_, ok = rt.GetContext("U2-C1")
	assert.False(t, ok)

	rt.Contexts().Forget("U1-C1")
	assert.Equal(t, 0, rt.Contexts().Len())
}
