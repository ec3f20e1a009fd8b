package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/ai-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/ai-chat/backend/internal/service/chat"
	"github.com/zhouzirui/ai-chat/backend/internal/service/connection"
)

type recordingCompleter struct {
	mu        sync.Mutex
	histories [][]chat.Message
	err       error
	delay     time.Duration
}

func (c *recordingCompleter) Complete(_ context.Context, history []chat.Message, input string) (string, error) {
	c.mu.Lock()
	c.histories = append(c.histories, history)
	delay, err := c.delay, c.err
	c.mu.Unlock()

	time.Sleep(delay)
	if err != nil {
		return "", err
	}
	return "echo: " + input, nil
}

func (c *recordingCompleter) configure(delay time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay, c.err = delay, err
}

func (c *recordingCompleter) lastHistory() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.histories[len(c.histories)-1]
}

type fixture struct {
	server    *httptest.Server
	registry  *connection.Registry
	sessions  *chatservice.Service
	completer *recordingCompleter
}

func newFixture(t *testing.T, policy connection.ReconnectPolicy, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		registry:  connection.NewRegistry(connection.Options{Policy: policy}),
		sessions:  chatservice.NewService(chatservice.Options{}),
		completer: &recordingCompleter{},
	}
	r := chi.NewRouter()
	New(f.registry, f.sessions, f.completer, opts).RegisterRoutes(r)
	f.server = httptest.NewServer(r)
	t.Cleanup(func() {
		f.registry.CloseAll()
		f.server.Close()
	})
	return f
}

func (f *fixture) dial(t *testing.T, clientID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func exchange(t *testing.T, conn *websocket.Conn, frame map[string]any) outboundFrame {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var reply outboundFrame
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "expected close error, got %v", err)
	require.Equal(t, code, closeErr.Code)
}

func TestFramesWithoutSessionIDCreateDistinctSessions(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	conn := f.dial(t, "client-1")

	first := exchange(t, conn, map[string]any{"message": "hi"})
	second := exchange(t, conn, map[string]any{"message": "hi"})

	require.Equal(t, "echo: hi", first.Message)
	require.NotEmpty(t, first.SessionID)
	require.NotEqual(t, first.SessionID, second.SessionID)
	_, err := time.Parse(time.RFC3339Nano, first.Timestamp)
	require.NoError(t, err)
	require.Equal(t, 2, f.sessions.Count())
}

func TestKnownSessionIDReusesTranscript(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	conn := f.dial(t, "client-1")

	first := exchange(t, conn, map[string]any{"message": "Hello world, this is a much longer opening line"})
	second := exchange(t, conn, map[string]any{"session_id": first.SessionID, "message": "again"})
	require.Equal(t, first.SessionID, second.SessionID)

	session, err := f.sessions.GetSession(context.Background(), first.SessionID)
	require.NoError(t, err)
	require.Len(t, session.Messages, 4)
	require.Equal(t, chat.RoleUser, session.Messages[0].Role)
	require.Equal(t, chat.RoleAssistant, session.Messages[1].Role)
	require.Equal(t, "echo: again", session.Messages[3].Content)
	require.Equal(t, "Hello world, this is a much lo...", session.Title)
}

func TestUnknownSessionIDStartsFreshSession(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	conn := f.dial(t, "client-1")

	reply := exchange(t, conn, map[string]any{"session_id": "does-not-exist", "message": "hi", "user_id": "alice", "title": "Mine"})
	require.NotEqual(t, "does-not-exist", reply.SessionID)

	_, err := f.sessions.GetSession(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, chatservice.ErrSessionNotFound)

	session, err := f.sessions.GetSession(context.Background(), reply.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session.UserID)
	require.Equal(t, "alice", *session.UserID)
	require.Equal(t, "Mine", session.Title)
	require.Len(t, session.Messages, 2)
}

func TestStatelessMemoryPassesNoHistory(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	conn := f.dial(t, "client-1")

	first := exchange(t, conn, map[string]any{"message": "one"})
	exchange(t, conn, map[string]any{"session_id": first.SessionID, "message": "two"})
	require.Empty(t, f.completer.lastHistory())
}

func TestSessionMemoryPassesPriorTurns(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{SessionMemory: true})
	conn := f.dial(t, "client-1")

	first := exchange(t, conn, map[string]any{"message": "one"})
	exchange(t, conn, map[string]any{"session_id": first.SessionID, "message": "two"})

	history := f.completer.lastHistory()
	require.Len(t, history, 2)
	require.Equal(t, "one", history[0].Content)
	require.Equal(t, "echo: one", history[1].Content)
}

func TestEmptyMessageIsAnswered(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	conn := f.dial(t, "client-1")

	reply := exchange(t, conn, map[string]any{"message": ""})
	require.Equal(t, "echo: ", reply.Message)
	require.NotEmpty(t, reply.SessionID)
}

func TestNonStringFieldsAreTreatedAsAbsent(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	conn := f.dial(t, "client-1")

	first := exchange(t, conn, map[string]any{"message": "hi"})
	reply := exchange(t, conn, map[string]any{"session_id": 42, "message": "hi", "user_id": 7, "title": false})
	require.NotEqual(t, first.SessionID, reply.SessionID)

	session, err := f.sessions.GetSession(context.Background(), reply.SessionID)
	require.NoError(t, err)
	require.Nil(t, session.UserID)
	require.Equal(t, "hi", session.Title)
	require.Equal(t, 2, f.sessions.Count())
}

func TestSlowCompletionKeepsConnectionOpen(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{
		ReadTimeout:  150 * time.Millisecond,
		PingInterval: 50 * time.Millisecond,
	})
	f.completer.configure(400*time.Millisecond, nil)
	conn := f.dial(t, "client-1")

	first := exchange(t, conn, map[string]any{"message": "one"})
	second := exchange(t, conn, map[string]any{"session_id": first.SessionID, "message": "two"})
	require.Equal(t, "echo: two", second.Message)
	require.Equal(t, first.SessionID, second.SessionID)
	require.True(t, f.registry.Connected("client-1"))
}

func TestInvalidFrameClosesWithInternalError(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	conn := f.dial(t, "client-1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	expectClose(t, conn, websocket.CloseInternalServerErr)
	require.Eventually(t, func() bool { return f.registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestMissingMessageClosesWithInternalError(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	conn := f.dial(t, "client-1")

	require.NoError(t, conn.WriteJSON(map[string]any{"session_id": "x"}))
	expectClose(t, conn, websocket.CloseInternalServerErr)
}

func TestNullMessageClosesWithInternalError(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	conn := f.dial(t, "client-1")

	require.NoError(t, conn.WriteJSON(map[string]any{"message": nil}))
	expectClose(t, conn, websocket.CloseInternalServerErr)
}

func TestCompletionFailureClosesConnection(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	f.completer.configure(0, errors.New("upstream down"))
	conn := f.dial(t, "client-1")

	require.NoError(t, conn.WriteJSON(map[string]any{"message": "hi"}))
	expectClose(t, conn, websocket.CloseInternalServerErr)
	require.Eventually(t, func() bool { return !f.registry.Connected("client-1") }, 2*time.Second, 10*time.Millisecond)
}

func TestDisconnectReleasesRegistryEntry(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	conn := f.dial(t, "client-1")
	exchange(t, conn, map[string]any{"message": "hi"})
	require.True(t, f.registry.Connected("client-1"))

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	require.Eventually(t, func() bool { return f.registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestReconnectClosesPreviousConnection(t *testing.T) {
	f := newFixture(t, connection.ClosePrevious, Options{})
	old := f.dial(t, "client-1")
	exchange(t, old, map[string]any{"message": "hi"})

	fresh := f.dial(t, "client-1")
	reply := exchange(t, fresh, map[string]any{"message": "hello"})
	require.Equal(t, "echo: hello", reply.Message)

	_ = old.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := old.ReadMessage()
	require.Error(t, err)
	require.True(t, f.registry.Connected("client-1"))
}

func TestReconnectRejectedByPolicy(t *testing.T) {
	f := newFixture(t, connection.RejectNew, Options{})
	first := f.dial(t, "client-1")
	exchange(t, first, map[string]any{"message": "hi"})

	second := f.dial(t, "client-1")
	expectClose(t, second, websocket.ClosePolicyViolation)

	reply := exchange(t, first, map[string]any{"message": "still here"})
	require.Equal(t, "echo: still here", reply.Message)
}
