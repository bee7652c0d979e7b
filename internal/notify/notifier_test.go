package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name  string
	err   error
	sent  int
	title string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	f.sent++
	f.title = title
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestNotifyEmptyFilterForwardsEverything(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, discard())

	require.NoError(t, n.Notify(context.Background(), "OPEN", "Opened", "body"))
	require.NoError(t, n.Notify(context.Background(), "PARTIAL_CLOSE", "Closed", "body"))

	assert.Equal(t, 2, s.sent)
}

func TestNotifyFilterIsCaseInsensitive(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{"full_close", " REVERSE "}, discard())

	ctx := context.Background()
	require.NoError(t, n.Notify(ctx, "FULL_CLOSE", "t", "m"))
	require.NoError(t, n.Notify(ctx, "reverse", "t", "m"))
	require.NoError(t, n.Notify(ctx, "OPEN", "t", "m"))

	assert.Equal(t, 2, s.sent)
}

func TestNotifyDeliversToAllSendersDespiteFailure(t *testing.T) {
	bad := &fakeSender{name: "telegram", err: errors.New("401 Unauthorized")}
	good := &fakeSender{name: "discord"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), "OPEN", "Opened", "body")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 sender(s) failed")
	assert.Contains(t, err.Error(), "telegram")
	assert.Equal(t, 1, good.sent, "failure of one sender must not stop the others")
}

func TestNotifyNoSendersIsNoop(t *testing.T) {
	n := NewNotifier(nil, nil, discard())
	require.NoError(t, n.Notify(context.Background(), "OPEN", "t", "m"))
}

func TestDiscordSenderPostsWebhook(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL + "/api/webhooks/123/abc")
	require.NoError(t, s.Send(context.Background(), "Position closed", "PnL +10.00"))

	assert.Equal(t, "/api/webhooks/123/abc", gotPath)
	assert.Contains(t, string(gotBody), "**Position closed**")
	assert.Contains(t, string(gotBody), "PnL +10.00")
}

func TestTelegramSenderSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false,"description":"Unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewTelegramSender("bad-token", "42")
	s.apiBase = srv.URL

	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
