package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts to a single chat via the Telegram Bot API. It is
// both the destination and its own directory.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client

	limiter *rate.Limiter
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  telegramAPI,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		// Telegram throttles bots posting into one group at roughly 20/min.
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 5),
	}
}

// Enabled reports whether both the token and the chat id are set.
func (t *TelegramNotifier) Enabled() bool {
	return t != nil && t.BotToken != "" && t.ChatID != ""
}

func (t *TelegramNotifier) Destinations(_ context.Context) ([]Destination, error) {
	if !t.Enabled() {
		return nil, nil
	}
	return []Destination{t}, nil
}

func (t *TelegramNotifier) ID() string     { return "telegram:" + t.ChatID }
func (t *TelegramNotifier) Name() string   { return "telegram:" + t.ChatID }
func (t *TelegramNotifier) Markup() Markup { return HTML }

// Send posts an HTML message and returns its message id.
func (t *TelegramNotifier) Send(ctx context.Context, text string) (string, error) {
	var msg struct {
		MessageID int64 `json:"message_id"`
	}
	err := t.call(ctx, "sendMessage", map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}, &msg)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(msg.MessageID, 10), nil
}

// SendRich appends the embed description after the text; Telegram has no embeds.
func (t *TelegramNotifier) SendRich(ctx context.Context, text string, embed Embed) (string, error) {
	return t.Send(ctx, joinParts(text, embed.Description))
}

// Delete removes a message. A message Telegram no longer knows about counts as deleted.
func (t *TelegramNotifier) Delete(ctx context.Context, messageID string) error {
	id, err := strconv.ParseInt(messageID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram message id %q: %w", messageID, err)
	}
	err = t.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    t.ChatID,
		"message_id": id,
	}, nil)
	var apiErr *TelegramError
	if errors.As(err, &apiErr) && apiErr.NotFound() {
		return nil
	}
	return err
}

// TelegramError is a non-ok Bot API response.
type TelegramError struct {
	Method      string
	Code        int
	Description string
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// NotFound reports whether the target message no longer exists.
func (e *TelegramError) NotFound() bool {
	return strings.Contains(strings.ToLower(e.Description), "not found")
}

func (t *TelegramNotifier) call(ctx context.Context, method string, payload map[string]any, result any) error {
	if !t.Enabled() {
		return ErrDisabled
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	apiURL := fmt.Sprintf("%s/bot%s/%s", t.BaseURL, t.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		ErrorCode   int             `json:"error_code"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	if !envelope.OK {
		code := envelope.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &TelegramError{Method: method, Code: code, Description: envelope.Description}
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
