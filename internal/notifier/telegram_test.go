package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu      sync.Mutex
	texts   []string
	docs    []string
	queries []string
	updates string
	failN   int
}

func (f *fakeBotAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		require.True(t, strings.HasPrefix(r.URL.Path, "/botTOKEN/"))
		if f.failN > 0 {
			f.failN--
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		switch strings.TrimPrefix(r.URL.Path, "/botTOKEN/") {
		case "sendMessage":
			var p map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			require.Equal(t, "42", p["chat_id"])
			f.texts = append(f.texts, p["text"])
			w.Write([]byte(`{"ok":true,"result":{}}`))
		case "sendDocument":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			require.Equal(t, "42", r.FormValue("chat_id"))
			file, hdr, err := r.FormFile("document")
			require.NoError(t, err)
			data, _ := io.ReadAll(file)
			f.docs = append(f.docs, hdr.Filename+"|"+r.FormValue("caption")+"|"+string(data))
			w.Write([]byte(`{"ok":true,"result":{}}`))
		case "getUpdates":
			f.queries = append(f.queries, r.URL.RawQuery)
			w.Write([]byte(f.updates))
		default:
			w.Write([]byte(`{"ok":false,"description":"Not Found"}`))
		}
	})
}

func newTestNotifier(t *testing.T, api *fakeBotAPI) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return NewTelegramNotifier(srv.URL+"/", "TOKEN", "42", "")
}

func TestSendMessageAndFile(t *testing.T) {
	api := &fakeBotAPI{}
	tn := newTestNotifier(t, api)
	ctx := context.Background()

	require.NoError(t, tn.SendMessage(ctx, "hello"))
	require.Equal(t, []string{"hello"}, api.texts)

	path := filepath.Join(t.TempDir(), "script.txt")
	require.NoError(t, os.WriteFile(path, []byte("namaste traders"), 0o644))
	require.NoError(t, tn.SendFile(ctx, path, "✍️ Script generated:"))
	require.Equal(t, []string{"script.txt|✍️ Script generated:|namaste traders"}, api.docs)

	require.Error(t, tn.SendFile(ctx, filepath.Join(t.TempDir(), "missing.mp3"), ""))
}

func TestSendMessage_APIError(t *testing.T) {
	api := &fakeBotAPI{failN: 1}
	tn := newTestNotifier(t, api)
	require.ErrorContains(t, tn.SendMessage(context.Background(), "x"), "status 502")
}

func TestSendWithRetry_RecoversAfterFailure(t *testing.T) {
	api := &fakeBotAPI{failN: 1}
	tn := newTestNotifier(t, api)
	require.NoError(t, tn.SendWithRetry(context.Background(), "retry me", 2))
	require.Equal(t, []string{"retry me"}, api.texts)
}

func TestGetUpdatesAndHead(t *testing.T) {
	api := &fakeBotAPI{updates: `{"ok":true,"result":[
		{"update_id":11,"message":{"text":" Yes ","chat":{"id":42}}},
		{"update_id":12,"edited_message":{"text":"late"}},
		{"update_id":13,"message":{"text":"no","chat":{"id":7}}}
	]}`}
	tn := newTestNotifier(t, api)
	ctx := context.Background()

	msgs, err := tn.GetUpdates(ctx, 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, int64(11), msgs[0].ID)
	require.Equal(t, "Yes", msgs[0].Text)
	require.Equal(t, "42", msgs[0].ChatID)
	require.Equal(t, "", msgs[1].ChatID)
	require.Equal(t, "7", msgs[2].ChatID)
	require.Contains(t, api.queries[0], "offset=11")
	require.Contains(t, api.queries[0], "timeout=30")

	head, err := tn.Head(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(13), head)
	require.Contains(t, api.queries[1], "offset=-1")
}

func TestHead_EmptyQueue(t *testing.T) {
	api := &fakeBotAPI{updates: `{"ok":true,"result":[]}`}
	tn := newTestNotifier(t, api)
	head, err := tn.Head(context.Background())
	require.NoError(t, err)
	require.Zero(t, head)
}

func TestGetUpdates_NotOK(t *testing.T) {
	api := &fakeBotAPI{updates: `{"ok":false,"description":"Conflict: terminated by other getUpdates request"}`}
	tn := newTestNotifier(t, api)
	_, err := tn.GetUpdates(context.Background(), 0, time.Second)
	require.ErrorContains(t, err, "Conflict")
}

func TestSplitMessage(t *testing.T) {
	require.Equal(t, []string{"short"}, splitMessage("short", 10))

	chunks := splitMessage("aaaa\nbbbb\ncccc", 10)
	require.Equal(t, []string{"aaaa\nbbbb\n", "cccc"}, chunks)

	chunks = splitMessage(strings.Repeat("x", 25), 10)
	require.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, chunks)
}
