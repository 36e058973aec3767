// Package telegram is the delivery client for the destination chat.
// It speaks the raw Bot API over HTTP: one outbound call per
// invocation, a mandatory request timeout, and a single retry with
// fixed backoff on transient failures.
package telegram

import (
	"bytes"
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	chatID     int64
	backoff    time.Duration
	log        *slog.Logger
}

var _ contract.IDeliveryClient = (*Client)(nil)

func NewClient(log *slog.Logger, token string, chatID int64, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		token:      token,
		chatID:     chatID,
		backoff:    500 * time.Millisecond,
		log:        log,
	}
}

// WithBaseURL redirects API calls, used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type editMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send posts a new message and returns its external message id.
func (c *Client) Send(ctx context.Context, text string) (int64, error) {
	resp, err := c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:    c.chatID,
		Text:      EscapeMarkdown(text),
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		return 0, err
	}
	return resp.Result.MessageID, nil
}

// Edit replaces the text of a previously delivered message in place.
// A "message to edit not found" / "message can't be edited" answer is
// permanent and reported as errors.ErrMessageNotEditable so the caller
// can fall back to a new send.
func (c *Client) Edit(ctx context.Context, messageID int64, text string) error {
	_, err := c.call(ctx, "editMessageText", editMessageRequest{
		ChatID:    c.chatID,
		MessageID: messageID,
		Text:      EscapeMarkdown(text),
		ParseMode: "MarkdownV2",
	})
	return err
}

// call performs one API method invocation with a single bounded retry.
// Only transient failures are retried; permanent ones surface at once.
func (c *Client) call(ctx context.Context, method string, payload any) (apiResponse, error) {
	resp, err := c.post(ctx, method, payload)
	if err == nil || !isTransient(err) {
		return resp, err
	}

	c.log.Warn("Transient delivery failure, retrying once", "method", method, "error", err)
	select {
	case <-ctx.Done():
		return apiResponse{}, fmt.Errorf("%w: %v", errors.ErrTransientDelivery, ctx.Err())
	case <-time.After(c.backoff):
	}
	return c.post(ctx, method, payload)
}

func (c *Client) post(ctx context.Context, method string, payload any) (apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return apiResponse{}, err
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apiResponse{}, err
	}
	request.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(request)
	if err != nil {
		return apiResponse{}, fmt.Errorf("%w: %v", errors.ErrTransientDelivery, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests {
		return apiResponse{}, fmt.Errorf("%w: status %d", errors.ErrTransientDelivery, httpResp.StatusCode)
	}

	var resp apiResponse
	if err = json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return apiResponse{}, fmt.Errorf("%w: %v", errors.ErrTransientDelivery, err)
	}
	if resp.OK {
		return resp, nil
	}

	description := strings.ToLower(resp.Description)
	// Re-editing with identical text: the live message already shows
	// this content, nothing to do.
	if strings.Contains(description, "message is not modified") {
		return resp, nil
	}
	if isNotEditable(description) {
		return resp, fmt.Errorf("%w: %s", errors.ErrMessageNotEditable, resp.Description)
	}
	return resp, fmt.Errorf("telegram api error %d: %s", resp.ErrorCode, resp.Description)
}

func isTransient(err error) bool {
	return stderrors.Is(err, errors.ErrTransientDelivery)
}

// isNotEditable matches the Bot API answers for a deleted or expired
// edit target. Anything else with ok=false is a real request error.
func isNotEditable(description string) bool {
	return strings.Contains(description, "message to edit not found") ||
		strings.Contains(description, "message can't be edited")
}
