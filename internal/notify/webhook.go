package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// Webhook posts messages to a Discord or Slack style webhook URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook notifier. A nil client uses http.DefaultClient.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{url: url, client: client}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Send posts msg. Without an image the body is JSON; with one it is a multipart form
// carrying payload_json and the file.
func (w *Webhook) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(webhookPayload{
		Content: fmt.Sprintf("**%s**\n%s", msg.Title, msg.Body),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var req *http.Request
	if msg.ImagePath == "" {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		body, contentType, err := multipartBody(payload, msg.ImagePath)
		if err != nil {
			return err
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, w.url, body)
		if err != nil {
			return fmt.Errorf("create webhook request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func multipartBody(payload []byte, imagePath string) (io.Reader, string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("payload_json", string(payload)); err != nil {
		return nil, "", fmt.Errorf("write payload_json: %w", err)
	}

	part, err := mw.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy snapshot: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
