package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/ai-chat/backend/internal/model/chat"
	"github.com/zhouzirui/ai-chat/backend/internal/service/ai"
	chatService "github.com/zhouzirui/ai-chat/backend/internal/service/chat"
	"github.com/zhouzirui/ai-chat/backend/internal/service/connection"
)

const (
	defaultPingInterval = 54 * time.Second
	defaultReadTimeout  = 60 * time.Second
	closeWriteWait      = time.Second
)

// ErrMissingMessage 表示帧中缺少 message 字段
var ErrMissingMessage = errors.New("frame has no message")

// SessionStore 是聊天循环需要的会话存储能力
type SessionStore interface {
	CreateSession(ctx context.Context, userID, title string) (chat.Session, error)
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	AppendMessage(ctx context.Context, sessionID string, message chat.Message) error
	LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// Options 调整聊天循环的行为
type Options struct {
	// SessionMemory 为 true 时把会话历史交给模型，否则每帧都是全新上下文
	SessionMemory bool
	PingInterval  time.Duration
	ReadTimeout   time.Duration
}

// Handler WebSocket聊天处理器
type Handler struct {
	registry  *connection.Registry
	sessions  SessionStore
	completer ai.Completer
	opts      Options
	upgrader  websocket.Upgrader
}

// New 创建WebSocket处理器
func New(registry *connection.Registry, sessions SessionStore, completer ai.Completer, opts Options) *Handler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	return &Handler{
		registry:  registry,
		sessions:  sessions,
		completer: completer,
		opts:      opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{clientID}", h.handleWebSocket)
}

// inboundFrame 只要求 message 存在；其余字段不是字符串时按缺省处理
type inboundFrame struct {
	SessionID json.RawMessage `json:"session_id"`
	Message   *string         `json:"message"`
	UserID    json.RawMessage `json:"user_id"`
	Title     json.RawMessage `json:"title"`
}

type turn struct {
	sessionID string
	message   string
	userID    string
	title     string
}

func parseFrame(data []byte) (turn, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return turn{}, errors.Wrap(err, "decode frame")
	}
	if frame.Message == nil {
		return turn{}, ErrMissingMessage
	}
	return turn{
		sessionID: optionalString(frame.SessionID),
		message:   *frame.Message,
		userID:    optionalString(frame.UserID),
		title:     optionalString(frame.Title),
	}, nil
}

func optionalString(raw json.RawMessage) string {
	var value string
	if len(raw) == 0 || json.Unmarshal(raw, &value) != nil {
		return ""
	}
	return value
}

type outboundFrame struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接，连接期间逐帧串行处理
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if clientID == "" {
		http.Error(w, "client_id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "ws").Str("client_id", clientID).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("component", "ws").Str("client_id", clientID).Logger()

	if err := h.registry.Connect(clientID, conn); err != nil {
		logger.Info().Err(err).Msg("connection rejected")
		closeWith(conn, websocket.ClosePolicyViolation, "client already connected")
		return
	}
	defer h.registry.Release(clientID, conn)

	logger.Info().Msg("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	go h.pingLoop(ctx, clientID, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("read failed")
			} else {
				logger.Info().Msg("client disconnected")
			}
			return
		}

		if err := h.handleFrame(ctx, clientID, data); err != nil {
			logger.Error().Err(err).Msg("chat loop terminated")
			closeWith(conn, websocket.CloseInternalServerErr, "internal error")
			return
		}

		// pongs are not processed while a turn runs, so the deadline is
		// re-armed only once the turn is done
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	}
}

// handleFrame 解析一帧、解析会话、调用模型并回复同一个客户端
func (h *Handler) handleFrame(ctx context.Context, clientID string, data []byte) error {
	frame, err := parseFrame(data)
	if err != nil {
		return err
	}

	session, err := h.resolveSession(ctx, frame)
	if err != nil {
		return err
	}

	var history []chat.Message
	if h.opts.SessionMemory {
		if history, err = h.sessions.LoadTranscript(ctx, session.ID); err != nil {
			return errors.Wrap(err, "load transcript")
		}
	}

	if err := h.sessions.AppendMessage(ctx, session.ID, chat.NewMessage(chat.RoleUser, frame.message)); err != nil {
		return errors.Wrap(err, "append user message")
	}

	reply, err := h.completer.Complete(ctx, history, frame.message)
	if err != nil {
		return errors.Wrap(err, "complete")
	}

	assistant := chat.NewMessage(chat.RoleAssistant, reply)
	if err := h.sessions.AppendMessage(ctx, session.ID, assistant); err != nil {
		return errors.Wrap(err, "append assistant message")
	}

	payload, err := json.Marshal(outboundFrame{
		SessionID: session.ID,
		Message:   reply,
		Timestamp: assistant.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return errors.Wrap(err, "encode reply")
	}
	if err := h.registry.Send(ctx, clientID, payload); err != nil {
		return errors.Wrap(err, "send reply")
	}

	log.Debug().Str("component", "ws").Str("client_id", clientID).Str("session_id", session.ID).Msg("reply sent")
	return nil
}

// resolveSession 复用已知会话；未知或缺省的 session_id 都会新建会话
func (h *Handler) resolveSession(ctx context.Context, frame turn) (chat.Session, error) {
	if frame.sessionID != "" {
		session, err := h.sessions.GetSession(ctx, frame.sessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, chatService.ErrSessionNotFound) {
			return chat.Session{}, errors.Wrap(err, "load session")
		}
		log.Debug().Str("component", "ws").Str("session_id", frame.sessionID).Msg("unknown session id, starting a new session")
	}

	session, err := h.sessions.CreateSession(ctx, frame.userID, frame.title)
	if err != nil {
		return chat.Session{}, errors.Wrap(err, "create session")
	}
	return session, nil
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, clientID string, conn *websocket.Conn) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.registry.Ping(clientID, conn); err != nil {
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
}
