package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"messenger-commerce/internal/retry"
)

const graphAPIBase = "https://graph.facebook.com/v19.0"

// Client sends messages through the Facebook Graph Send API. Delivery and
// retry semantics live here; the conversation engine only sees success or a
// logged error.
type Client struct {
	PageToken string
	BaseURL   string
	http      *http.Client
}

func NewClient(pageToken string) *Client {
	return &Client{
		PageToken: pageToken,
		BaseURL:   graphAPIBase,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// --- Message Structures ---

type sendRequest struct {
	Recipient recipientObj `json:"recipient"`
	Message   messageObj   `json:"message"`
	Type      string       `json:"messaging_type"`
}

type recipientObj struct {
	ID string `json:"id"`
}

type messageObj struct {
	Text string `json:"text"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText delivers a text message to a PSID on behalf of a page. Transient
// failures are retried with backoff.
func (c *Client) SendText(ctx context.Context, pageID, psid, text string) error {
	payload := sendRequest{
		Recipient: recipientObj{ID: psid},
		Message:   messageObj{Text: text},
		Type:      "RESPONSE",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages?access_token=%s", c.BaseURL, pageID, c.PageToken)

	return retry.WithRetry(ctx, 3, 500*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)

		var parsed sendResponse
		if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error != nil {
			return fmt.Errorf("send api error %d: %s", parsed.Error.Code, parsed.Error.Message)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("send api returned %d", resp.StatusCode)
		}
		return nil
	})
}
