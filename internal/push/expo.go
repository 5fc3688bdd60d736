package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	ExpoPushURL = "https://exp.host/--/api/v2/push/send"

	// expoBatchSize is the gateway's per-request message limit.
	expoBatchSize = 100

	TicketOK    = "ok"
	TicketError = "error"

	// DeviceNotRegistered marks a token the device no longer accepts.
	DeviceNotRegistered = "DeviceNotRegistered"
)

// ExpoMessage is one notification for the Expo push gateway.
type ExpoMessage struct {
	To    string         `json:"to"`
	Title string         `json:"title,omitempty"`
	Body  string         `json:"body,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
	Badge *int           `json:"badge,omitempty"`
	Sound string         `json:"sound,omitempty"`
}

type TicketDetails struct {
	Error string `json:"error,omitempty"`
}

// ExpoTicket is the gateway's per-message answer.
type ExpoTicket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details *TicketDetails `json:"details,omitempty"`
}

// Unregistered reports whether the ticket says the token is dead.
func (t ExpoTicket) Unregistered() bool {
	return t.Status == TicketError && t.Details != nil && t.Details.Error == DeviceNotRegistered
}

type Expo struct {
	url         string
	accessToken string
	httpClient  *http.Client
}

type ExpoOption func(*Expo)

func WithExpoHTTPClient(c *http.Client) ExpoOption {
	return func(e *Expo) {
		e.httpClient = c
	}
}

func WithExpoURL(url string) ExpoOption {
	return func(e *Expo) {
		e.url = url
	}
}

// NewExpo creates a gateway client. accessToken is optional.
func NewExpo(accessToken string, opts ...ExpoOption) *Expo {
	e := &Expo{
		url:         ExpoPushURL,
		accessToken: accessToken,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type expoResponse struct {
	Data   []ExpoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Send posts msgs in batches and returns one ticket per message, in order.
// A batch that fails as a whole yields error tickets for its messages and
// contributes to the returned error. Nothing is retried.
func (e *Expo) Send(ctx context.Context, msgs []ExpoMessage) ([]ExpoTicket, error) {
	tickets := make([]ExpoTicket, 0, len(msgs))
	var errs []error

	for start := 0; start < len(msgs); start += expoBatchSize {
		end := min(start+expoBatchSize, len(msgs))
		batch := msgs[start:end]

		got, err := e.sendBatch(ctx, batch)
		if err == nil && len(got) != len(batch) {
			err = fmt.Errorf("expo returned %d tickets for %d messages", len(got), len(batch))
		}
		if err != nil {
			errs = append(errs, err)
			for range batch {
				tickets = append(tickets, ExpoTicket{Status: TicketError, Message: err.Error()})
			}
			continue
		}
		tickets = append(tickets, got...)
	}
	return tickets, errors.Join(errs...)
}

func (e *Expo) sendBatch(ctx context.Context, batch []ExpoMessage) ([]ExpoTicket, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.accessToken)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send to expo: %w", err)
	}
	defer resp.Body.Close()

	var out expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("expo status %d: decode response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Code+": "+e.Message)
		}
		return nil, fmt.Errorf("expo status %d: %s", resp.StatusCode, strings.Join(msgs, "; "))
	}
	return out.Data, nil
}
