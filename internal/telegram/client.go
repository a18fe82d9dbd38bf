// Package telegram is a minimal Telegram Bot API client covering what
// the bot needs: sending messages with reply keyboards and long-polling
// for updates.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Client struct {
	baseURL     string
	token       string
	groupChatID int64
	httpClient  *http.Client
	log         *zap.Logger
}

// NewClient builds a client for the given bot token. groupChatID is the
// shared broadcast channel; zero disables broadcasts.
func NewClient(baseURL, token string, groupChatID int64, log *zap.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		token:       token,
		groupChatID: groupChatID,
		httpClient:  &http.Client{Timeout: 65 * time.Second},
		log:         log,
	}
}

// User is a Telegram user.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Chat is a Telegram chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is an incoming or outgoing Telegram message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
	Date      int64  `json:"date"`
}

// Update is one long-poll update.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// KeyboardButton is one button of a reply keyboard.
type KeyboardButton struct {
	Text string `json:"text"`
}

// ReplyKeyboardMarkup renders a persistent button keyboard.
type ReplyKeyboardMarkup struct {
	Keyboard       [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard,omitempty"`
}

type sendMessageRequest struct {
	ChatID      int64                `json:"chat_id"`
	Text        string               `json:"text"`
	ReplyMarkup *ReplyKeyboardMarkup `json:"reply_markup,omitempty"`
}

type getUpdatesRequest struct {
	Offset  int64 `json:"offset,omitempty"`
	Timeout int   `json:"timeout,omitempty"`
}

// SendMessage sends text to a chat, optionally attaching a reply
// keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, kb *ReplyKeyboardMarkup) error {
	req := sendMessageRequest{ChatID: chatID, Text: text, ReplyMarkup: kb}
	var msg Message
	if err := c.doJSON(ctx, "sendMessage", req, &msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// GetUpdates long-polls for updates after offset. timeoutSec is the
// server-side hold time.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	req := getUpdatesRequest{Offset: offset, Timeout: timeoutSec}
	var updates []Update
	if err := c.doJSON(ctx, "getUpdates", req, &updates); err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	return updates, nil
}

// NotifyUser delivers a direct message, best-effort.
func (c *Client) NotifyUser(userID int64, text string) bool {
	if err := c.SendMessage(context.Background(), userID, text, nil); err != nil {
		c.log.Warn("dm failed", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return true
}

// NotifyBroadcast posts to the shared group channel, best-effort.
func (c *Client) NotifyBroadcast(text string) bool {
	if c.groupChatID == 0 {
		return false
	}
	if err := c.SendMessage(context.Background(), c.groupChatID, text, nil); err != nil {
		c.log.Warn("broadcast failed", zap.Error(err))
		return false
	}
	return true
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

func (c *Client) doJSON(ctx context.Context, method string, body any, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !api.OK {
		return fmt.Errorf("api error %d: %s", api.ErrorCode, api.Description)
	}

	if result != nil && len(api.Result) > 0 {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
