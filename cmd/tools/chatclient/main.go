package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type options struct {
	server    string
	clientID  string
	sessionID string
	userID    string
	title     string
	timeout   time.Duration
}

type frame struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
	Title     string `json:"title,omitempty"`
}

type reply struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func main() {
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	var opts options
	cmd := &cobra.Command{
		Use:   "chatclient [message...]",
		Short: "手动测试 /ws/{client_id} 聊天通道；不带参数时逐行读取标准输入",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "ws://localhost:8000", "后端地址")
	cmd.Flags().StringVar(&opts.clientID, "client", "", "client_id，留空则自动生成")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "续用已有 session_id")
	cmd.Flags().StringVar(&opts.userID, "user", "", "新会话的 user_id")
	cmd.Flags().StringVar(&opts.title, "title", "", "新会话标题")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "单条消息等待回复的超时时间")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("chat client failed")
	}
}

func run(ctx context.Context, opts options, args []string) error {
	if opts.clientID == "" {
		opts.clientID = "manual-" + uuid.NewString()
	}

	endpoint, err := url.JoinPath(opts.server, "ws", opts.clientID)
	if err != nil {
		return errors.Wrap(err, "build endpoint")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return errors.Wrapf(err, "dial %s", endpoint)
	}
	defer conn.Close()

	log.Info().Str("endpoint", endpoint).Msg("connected")

	sessionID := opts.sessionID
	send := func(text string) error {
		out := frame{SessionID: sessionID, Message: text}
		if sessionID == "" {
			out.UserID = opts.userID
			out.Title = opts.title
		}
		if err := conn.WriteJSON(out); err != nil {
			return errors.Wrap(err, "write frame")
		}

		_ = conn.SetReadDeadline(time.Now().Add(opts.timeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read reply")
		}
		var in reply
		if err := json.Unmarshal(data, &in); err != nil {
			return errors.Wrap(err, "decode reply")
		}

		sessionID = in.SessionID
		log.Info().Str("session_id", in.SessionID).Str("timestamp", in.Timestamp).Msg("reply received")
		fmt.Println(in.Message)
		return nil
	}

	if len(args) > 0 {
		return send(strings.Join(args, " "))
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := send(text); err != nil {
			return err
		}
	}
	return scanner.Err()
}
