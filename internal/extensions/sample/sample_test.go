package sample_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/gynoid/internal/droid"
	"github.com/ziadkadry99/gynoid/internal/droid/droidtest"
	"github.com/ziadkadry99/gynoid/internal/extensions/sample"
)

func setup(t *testing.T, keys map[string]string) *droidtest.Adapter {
	t.Helper()
	dir := t.TempDir()
	def, err := fs.ReadFile(sample.Files(), "droid.yaml")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, sample.Name), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, sample.Name, "droid.yaml"), def, 0o644))

	catalog := droid.NewCatalog()
	sample.Register(catalog)
	adapter := droidtest.New("UBOT")
	rt, err := droid.New(droid.Options{Name: "sample", Adapter: adapter, Catalog: catalog, InstallDir: dir, Keys: keys})
	require.NoError(t, err)
	require.NoError(t, rt.LoadExtension(sample.Name, ""))
	require.NoError(t, rt.Start(context.Background()))
	return adapter
}

func msg(text, channel string) droid.Event {
	return droid.Event{
		Type:      droid.EventMessage,
		Timestamp: "10.0",
		Text:      text,
		User:      droid.User{ID: "U1", Name: "alice"},
		Channel:   droid.Channel{ID: "C-" + channel, Name: channel},
	}
}

func TestPing(t *testing.T) {
	adapter := setup(t, nil)
	consumed, err := adapter.Send(context.Background(), msg("ping", "general"))
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, []string{"Pong!"}, adapter.Texts())
}

func TestSecretRestrictedToAllowedChannel(t *testing.T) {
	adapter := setup(t, map[string]string{"SECRET": "42"})
	ctx := context.Background()

	consumed, _ := adapter.Send(ctx, msg("secret", "random"))
	assert.False(t, consumed)
	assert.Empty(t, adapter.Sent())

	dm := msg("secret", "alice")
	dm.Channel.IsIM = true
	consumed, _ = adapter.Send(ctx, dm)
	assert.False(t, consumed)

	consumed, _ = adapter.Send(ctx, msg("secret", "allowed"))
	assert.True(t, consumed)
	assert.Equal(t, []string{"The secret is 42"}, adapter.Texts())
}

func TestEchoAndAgain(t *testing.T) {
	adapter := setup(t, nil)
	ctx := context.Background()

	adapter.Send(ctx, msg("again", "general"))
	adapter.Send(ctx, msg("echo Hello World", "general"))
	adapter.Send(ctx, msg("again", "general"))
	adapter.Send(ctx, msg("again", "other"))
	assert.Equal(t, []string{"Nothing to repeat", "Hello World", "Hello World", "Nothing to repeat"}, adapter.Texts())
}

func TestThanksReaction(t *testing.T) {
	adapter := setup(t, nil)
	ev := msg("", "general")
	ev.Type = droid.EventReactionAdded
	ev.Reaction = ":thumbsup::skin-tone-2:"

	consumed, err := adapter.Send(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, consumed)
	sent := adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "reaction_add", sent[0].Kind)
	assert.Equal(t, droid.Reaction{Emoji: "heart", ChannelID: "C-general", Timestamp: "10.0"}, sent[0].Reaction)
}

func TestReplyAlias(t *testing.T) {
	adapter := setup(t, nil)
	adapter.Send(context.Background(), msg("Hi", "general"))
	assert.Equal(t, []string{"Hello!"}, adapter.Texts())
}

func TestFeedbackDialog(t *testing.T) {
	adapter := setup(t, nil)
	ctx := context.Background()

	adapter.Send(ctx, msg("feedback", "general"))
	assert.Equal(t, []string{"Unable to open the feedback form: dialog needs a trigger id"}, adapter.Texts())
	adapter.Reset()

	ev := msg("feedback", "general")
	ev.TriggerID = "trig"
	adapter.Send(ctx, ev)
	sent := adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, sample.FeedbackCallback, sent[0].Dialog.CallbackID)

	handled, err := adapter.Submit(ctx, droid.Submission{
		Type:       "dialog_submission",
		CallbackID: sample.FeedbackCallback,
		User:       droid.User{ID: "U1", Name: "alice"},
		Channel:    droid.Channel{ID: "C-general", Name: "general"},
		Values:     map[string]string{"comment": "nice droid"},
	})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []string{"Thanks for the feedback: nice droid"}, adapter.Texts())
}
