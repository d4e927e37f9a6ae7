package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/notify"
)

func TestRender(t *testing.T) {
	data := notify.TemplateData{Name: "ovos-core", Version: "1.4.0", Tag: "V1.4.0"}

	text, err := notify.Render("", data)
	require.NoError(t, err)
	assert.Equal(t, "ovos-core 1.4.0 has been released", text)

	text, err = notify.Render("Released {{.Tag}}", data)
	require.NoError(t, err)
	assert.Equal(t, "Released V1.4.0", text)

	_, err = notify.Render("a release happened", data)
	assert.ErrorContains(t, err, "does not contain version")

	_, err = notify.Render("{{.Nope}", data)
	assert.Error(t, err)
}

type matrixServer struct {
	mu     sync.Mutex
	seen   map[string]string
	paths  []string
	auth   []string
	bodies []map[string]string
}

func (s *matrixServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Method != http.MethodPut || !strings.HasPrefix(r.URL.Path, "/_matrix/client/v3/rooms/") {
		http.NotFound(w, r)
		return
	}
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	if s.seen == nil {
		s.seen = map[string]string{}
	}
	id, ok := s.seen[r.URL.Path]
	if !ok {
		id = "$event" + string(rune('a'+len(s.seen)))
		s.seen[r.URL.Path] = id
		s.bodies = append(s.bodies, body)
	}
	s.paths = append(s.paths, r.URL.Path)
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	_ = json.NewEncoder(w).Encode(map[string]string{"event_id": id})
}

func TestMatrixNotify(t *testing.T) {
	server := &matrixServer{}
	srv := httptest.NewServer(server)
	defer srv.Close()

	m := notify.NewMatrix(srv.URL+"/", "syt_token")
	assert.Equal(t, "matrix", m.Name())

	msg := notify.Message{Channel: "!room:matrix.org", Text: "ovos-core 1.4.0 has been released", Key: "release-123"}
	require.NoError(t, m.Notify(context.Background(), msg))
	require.NoError(t, m.Notify(context.Background(), msg))

	require.Len(t, server.paths, 2)
	assert.Equal(t, server.paths[0], server.paths[1], "retries reuse the transaction id")
	assert.Len(t, server.bodies, 1)
	assert.Equal(t, "m.text", server.bodies[0]["msgtype"])
	assert.Equal(t, msg.Text, server.bodies[0]["body"])
	assert.Equal(t, "Bearer syt_token", server.auth[0])
	assert.Contains(t, server.paths[0], "/rooms/!room:matrix.org/send/m.room.message/"+notify.TransactionID(msg))
}

func TestMatrixErrors(t *testing.T) {
	t.Run("missing room", func(t *testing.T) {
		err := notify.NewMatrix("https://matrix.example", "tok").Notify(context.Background(), notify.Message{Text: "x"})
		assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))
	})

	t.Run("missing token", func(t *testing.T) {
		err := notify.NewMatrix("https://matrix.example", "").Notify(context.Background(), notify.Message{Channel: "!r", Text: "x"})
		assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))
	})

	t.Run("forbidden", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errcode":"M_FORBIDDEN"}`))
		}))
		defer srv.Close()
		err := notify.NewMatrix(srv.URL, "tok").Notify(context.Background(), notify.Message{Channel: "!r", Text: "x"})
		assert.Equal(t, errors.CodeForbidden, errors.CodeOf(err))
		assert.Contains(t, err.Error(), "M_FORBIDDEN")
	})
}

func TestTransactionID(t *testing.T) {
	a := notify.TransactionID(notify.Message{Channel: "!a", Key: "k"})
	assert.Equal(t, a, notify.TransactionID(notify.Message{Channel: "!a", Key: "k", Text: "other"}))
	assert.NotEqual(t, a, notify.TransactionID(notify.Message{Channel: "!b", Key: "k"}))
	assert.NotEqual(t,
		notify.TransactionID(notify.Message{Channel: "!a"}),
		notify.TransactionID(notify.Message{Channel: "!a"}))
}

func TestSlackNotify(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := notify.NewSlack(srv.URL, nil, nil)
	require.NoError(t, s.Notify(context.Background(), notify.Message{Channel: "#releases", Text: "ovos-core 1.4.0 has been released"}))
	assert.Equal(t, "#releases", got["channel"])
	assert.Equal(t, "ovos-core 1.4.0 has been released", got["text"])

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer bad.Close()
	err := notify.NewSlack(bad.URL, nil, nil).Notify(context.Background(), notify.Message{Text: "x"})
	assert.Equal(t, errors.CodeNotifyFailed, errors.CodeOf(err))

	err = notify.NewSlack("", nil, nil).Notify(context.Background(), notify.Message{Text: "x"})
	assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))
}
