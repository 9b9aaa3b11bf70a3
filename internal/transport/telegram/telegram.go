// Package telegram implements watch.Transport over the Telegram Bot
// API, plus a long-polling loop for inbound commands.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.telegram.org"

// Config controls the Telegram transport.
type Config struct {
	Token string
	// BaseURL overrides the API host, primarily for tests.
	BaseURL string
	// PollTimeout is the long-poll wait passed to getUpdates.
	PollTimeout time.Duration
	// RequestTimeout bounds individual API calls.
	RequestTimeout time.Duration
}

// Update is one inbound message relevant to the bot: the chat it came
// from and its text. Chat IDs double as user IDs throughout the system.
type Update struct {
	UpdateID int64
	ChatID   string
	Text     string
}

// Transport talks to the Telegram Bot API.
type Transport struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds a Transport. The token must be non-empty.
func New(cfg Config, logger *zap.Logger) (*Transport, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// SendText delivers a plain text message to a chat.
func (t *Transport) SendText(ctx context.Context, userID, text string) error {
	payload := map[string]string{
		"chat_id": userID,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sendMessage: %w", err)
	}
	_, err = t.call(ctx, "sendMessage", "application/json", bytes.NewReader(body))
	return err
}

// SendFile uploads the file at path as a document attachment.
func (t *Transport) SendFile(ctx context.Context, userID, path, caption string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open attachment: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("chat_id", userID); err != nil {
		return fmt.Errorf("build sendDocument form: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("build sendDocument form: %w", err)
		}
	}
	part, err := writer.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("build sendDocument form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy attachment: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize sendDocument form: %w", err)
	}

	_, err = t.call(ctx, "sendDocument", writer.FormDataContentType(), &buf)
	return err
}

// Poll runs a getUpdates long-poll loop until ctx is canceled, invoking
// handle for every text message. Transient API errors are logged and
// retried after a short backoff.
func (t *Transport) Poll(ctx context.Context, handle func(context.Context, Update)) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, err := t.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Warn("getUpdates failed", zap.Error(err))
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Text == "" || u.ChatID == "" {
				continue
			}
			handle(ctx, u)
		}
	}
}

type wireUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

func (t *Transport) getUpdates(ctx context.Context, offset int64) ([]Update, error) {
	params := url.Values{}
	params.Set("timeout", strconv.Itoa(int(t.cfg.PollTimeout/time.Second)))
	if offset > 0 {
		params.Set("offset", strconv.FormatInt(offset, 10))
	}
	result, err := t.call(ctx, "getUpdates?"+params.Encode(), "application/json", nil)
	if err != nil {
		return nil, err
	}

	var wire []wireUpdate
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, fmt.Errorf("decode getUpdates result: %w", err)
	}
	updates := make([]Update, 0, len(wire))
	for _, w := range wire {
		u := Update{UpdateID: w.UpdateID}
		if w.Message != nil {
			u.ChatID = strconv.FormatInt(w.Message.Chat.ID, 10)
			u.Text = w.Message.Text
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func (t *Transport) call(ctx context.Context, method, contentType string, body io.Reader) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.cfg.BaseURL, t.cfg.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("%s rejected: %s", method, parsed.Description)
	}
	return parsed.Result, nil
}
