// Package email sends transactional mail through Postmark.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"
)

const postmarkURL = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	portalURL   string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient returns a Postmark client. portalURL is linked from outgoing
// mail.
func NewClient(serverToken, fromEmail, portalURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		portalURL:   portalURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c != nil && c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// SendMerchantStatus tells a merchant their account was approved or
// suspended. Other statuses are not mailed.
func (c *Client) SendMerchantStatus(ctx context.Context, toEmail, businessName, status string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var subject, text string
	switch status {
	case "approved":
		subject = fmt.Sprintf("%s is approved on SpotX", businessName)
		text = "Your merchant account has been approved. You can now activate campaigns in the portal."
	case "suspended":
		subject = fmt.Sprintf("%s has been suspended on SpotX", businessName)
		text = "Your merchant account has been suspended. Active campaigns will no longer be shown to users."
	default:
		return nil
	}

	link := c.portalURL + "/merchant"
	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		TextBody: fmt.Sprintf("%s\n\n%s", text, link),
		HtmlBody: fmt.Sprintf(`<p>%s</p><p><a href="%s">Open the merchant portal</a></p>`,
			html.EscapeString(text), html.EscapeString(link)),
		Tag: "merchant-" + status,
	}
	return c.send(ctx, payload)
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}
	return nil
}
