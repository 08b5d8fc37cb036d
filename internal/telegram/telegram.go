// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package telegram implements a client for the Telegram Bot API, covering the
// small subset of it that drillbot needs: long polling for updates, sending
// messages and downloading files.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.astrophena.name/drillbot/internal/request"
	"go.astrophena.name/drillbot/internal/version"
)

const (
	defaultAPIURL  = "https://api.telegram.org"
	sendRetryLimit = 5 // N attempts to retry message sending

	// MaxFileSize is the largest submission document the client will download.
	MaxFileSize = 1 << 20
)

// Update represents an incoming update from getUpdates.
type Update struct {
	ID      int64    `json:"update_id"`
	Message *Message `json:"message"`
}

// Message represents a message sent to the bot.
type Message struct {
	ID       int64     `json:"message_id"`
	From     *User     `json:"from"`
	Chat     Chat      `json:"chat"`
	Text     string    `json:"text"`
	Caption  string    `json:"caption"`
	Document *Document `json:"document"`
}

// User represents a Telegram user.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat represents a Telegram chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Document represents a file attached to a message.
type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// Config configures a Client.
type Config struct {
	Token      string
	APIURL     string // defaults to the public Bot API endpoint
	HTTPClient *http.Client
	Scrubber   *strings.Replacer
	Logger     *slog.Logger
}

// Client talks to the Telegram Bot API.
type Client struct {
	token    string
	apiURL   string
	httpc    *http.Client
	scrubber *strings.Replacer
	slog     *slog.Logger
	sleep    func(context.Context, time.Duration) bool
}

// New returns a Client for the bot identified by cfg.Token.
func New(cfg Config) *Client {
	c := &Client{
		token:    cfg.Token,
		apiURL:   cfg.APIURL,
		httpc:    cfg.HTTPClient,
		scrubber: cfg.Scrubber,
		slog:     cfg.Logger,
	}
	if c.apiURL == "" {
		c.apiURL = defaultAPIURL
	}
	if c.httpc == nil {
		c.httpc = request.DefaultClient
	}
	if c.scrubber == nil && c.token != "" {
		c.scrubber = strings.NewReplacer(c.token, "[EXPUNGED]")
	}
	if c.slog == nil {
		c.slog = slog.Default()
	}
	c.sleep = sleep
	return c
}

// Scrubber returns the replacer that masks the bot token in logs and errors.
func (c *Client) Scrubber() *strings.Replacer { return c.scrubber }

type apiResponse[Result any] struct {
	OK          bool   `json:"ok"`
	Result      Result `json:"result"`
	Description string `json:"description"`
}

func call[Result any](ctx context.Context, c *Client, method string, args any) (Result, error) {
	resp, err := request.Make[apiResponse[Result]](ctx, request.Params{
		Method: http.MethodPost,
		URL:    c.apiURL + "/bot" + c.token + "/" + method,
		Body:   args,
		Headers: map[string]string{
			"User-Agent": version.UserAgent(),
		},
		HTTPClient: c.httpc,
		Scrubber:   c.scrubber,
	})
	if err != nil {
		var zero Result
		return zero, err
	}
	if !resp.OK {
		var zero Result
		return zero, fmt.Errorf("telegram: %s failed: %s", method, resp.Description)
	}
	return resp.Result, nil
}

// GetUpdates long polls for updates with IDs greater or equal to offset. The
// call blocks on the Telegram side for up to timeout.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	return call[[]Update](ctx, c, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	})
}

// Send sends a text message to a chat, splitting it into chunks that fit the
// Bot API message limit and retrying when rate limited.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text) {
		msg := map[string]any{
			"chat_id": chatID,
			"text":    chunk,
			"link_preview_options": map[string]bool{
				"is_disabled": true,
			},
		}

		var err error
		for range sendRetryLimit {
			_, err = call[json.RawMessage](ctx, c, "sendMessage", msg)
			if err == nil {
				break
			}

			retryable, wait := isRateLimited(err)
			if !retryable {
				break
			}

			c.slog.Warn("sending rate limited, waiting", slog.Int64("chat_id", chatID), slog.Duration("wait", wait))
			if !c.sleep(ctx, wait) {
				return ctx.Err()
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type file struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// FileContent downloads a file previously sent to the bot. Files larger than
// MaxFileSize are rejected without downloading.
func (c *Client) FileContent(ctx context.Context, fileID string) ([]byte, error) {
	f, err := call[file](ctx, c, "getFile", map[string]string{"file_id": fileID})
	if err != nil {
		return nil, err
	}
	if f.FileSize > MaxFileSize {
		return nil, fmt.Errorf("telegram: file %s is too large (%d bytes)", fileID, f.FileSize)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/file/bot"+c.token+"/"+f.FilePath, nil)
	if err != nil {
		return nil, c.scrubErr(err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, c.scrubErr(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: downloading file %s: want 200, got %d", fileID, res.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(res.Body, MaxFileSize+1))
	if err != nil {
		return nil, c.scrubErr(err)
	}
	if len(b) > MaxFileSize {
		return nil, fmt.Errorf("telegram: file %s is too large", fileID)
	}
	return b, nil
}

func (c *Client) scrubErr(err error) error {
	if c.scrubber == nil {
		return err
	}
	return errors.New(c.scrubber.Replace(err.Error()))
}

func splitMessage(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= 4096 {
		return []string{text}
	}

	var chunks []string
	for text != "" {
		if utf8.RuneCountInString(text) <= 4096 {
			chunks = append(chunks, text)
			break
		}

		var (
			lastNewline    = -1
			lastWhitespace = -1
			byteCap        = len(text)
			runeCount      int
		)

		for i, r := range text {
			if runeCount == 4096 {
				byteCap = i
				break
			}
			runeCount++

			if r == '\n' {
				lastNewline = i
				continue
			}
			if unicode.IsSpace(r) {
				lastWhitespace = i
			}
		}

		splitAt := byteCap
		switch {
		case lastNewline > 0:
			splitAt = lastNewline
		case lastWhitespace > 0:
			splitAt = lastWhitespace
		}

		chunk := strings.TrimSpace(text[:splitAt])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[splitAt:])
	}

	return chunks
}

func isRateLimited(err error) (bool, time.Duration) {
	var statusErr *request.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		return false, 0
	}

	var errorResponse struct {
		Parameters struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(statusErr.Body, &errorResponse); err != nil {
		return false, 0
	}

	return true, time.Duration(errorResponse.Parameters.RetryAfter) * time.Second
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
