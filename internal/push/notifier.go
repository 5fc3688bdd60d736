package push

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/spotx/internal/metrics"
	"github.com/dukerupert/spotx/internal/model"
)

// Notification is channel-independent notification content.
type Notification struct {
	Title string
	Body  string
	URL   string
	Tag   string
	Data  map[string]any
}

// Result counts delivery outcomes across all channels.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (r *Result) add(o Result) {
	r.Sent += o.Sent
	r.Failed += o.Failed
}

type DeviceStore interface {
	ListTokensByUser(userID string) ([]model.PushToken, error)
	ListAllTokens() ([]model.PushToken, error)
	DeleteToken(token string) error
	ListSubscriptionsByUser(userID string) ([]model.WebPushSubscription, error)
	ListAllSubscriptions() ([]model.WebPushSubscription, error)
	DeleteSubscriptionByEndpoint(endpoint string) error
}

// Notifier fans a notification out to mobile devices through Expo and to
// portal browsers through web push.
type Notifier struct {
	store   DeviceStore
	expo    *Expo
	web     *WebPush
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewNotifier(store DeviceStore, expo *Expo, web *WebPush, m *metrics.Metrics, logger *slog.Logger) *Notifier {
	return &Notifier{store: store, expo: expo, web: web, metrics: m, logger: logger}
}

// SendToUser notifies every device of one user.
func (n *Notifier) SendToUser(ctx context.Context, userID string, note Notification) Result {
	var res Result
	tokens, err := n.store.ListTokensByUser(userID)
	if err != nil {
		n.logger.Error("list push tokens", "user_id", userID, "error", err)
	} else {
		res.add(n.sendExpo(ctx, tokens, note))
	}

	if n.web.Configured() {
		subs, err := n.store.ListSubscriptionsByUser(userID)
		if err != nil {
			n.logger.Error("list web push subscriptions", "user_id", userID, "error", err)
		} else {
			res.add(n.sendWeb(subs, note))
		}
	}
	return res
}

// SendToAll notifies every registered device.
func (n *Notifier) SendToAll(ctx context.Context, note Notification) Result {
	var res Result
	tokens, err := n.store.ListAllTokens()
	if err != nil {
		n.logger.Error("list push tokens", "error", err)
	} else {
		res.add(n.sendExpo(ctx, tokens, note))
	}

	if n.web.Configured() {
		subs, err := n.store.ListAllSubscriptions()
		if err != nil {
			n.logger.Error("list web push subscriptions", "error", err)
		} else {
			res.add(n.sendWeb(subs, note))
		}
	}
	n.logger.Info("broadcast sent", "title", note.Title, "sent", res.Sent, "failed", res.Failed)
	return res
}

func (n *Notifier) sendExpo(ctx context.Context, tokens []model.PushToken, note Notification) Result {
	var res Result
	if len(tokens) == 0 || n.expo == nil {
		return res
	}

	msgs := make([]ExpoMessage, len(tokens))
	for i, t := range tokens {
		msgs[i] = ExpoMessage{To: t.Token, Title: note.Title, Body: note.Body, Data: note.Data, Sound: "default"}
	}

	tickets, err := n.expo.Send(ctx, msgs)
	if err != nil {
		n.logger.Warn("expo send", "error", err)
	}
	for i, t := range tickets {
		if t.Status == TicketOK {
			res.Sent++
			continue
		}
		res.Failed++
		if t.Unregistered() {
			if err := n.store.DeleteToken(tokens[i].Token); err != nil {
				n.logger.Error("delete unregistered token", "error", err)
			} else {
				n.logger.Info("removed unregistered push token", "user_id", tokens[i].UserID)
			}
		}
	}
	n.metrics.PushResult("expo", res.Sent, res.Failed)
	return res
}

func (n *Notifier) sendWeb(subs []model.WebPushSubscription, note Notification) Result {
	var res Result
	payload := Payload{Title: note.Title, Body: note.Body, URL: note.URL, Tag: note.Tag, Data: note.Data}
	for i := range subs {
		err := n.web.Send(&subs[i], payload)
		if err == nil {
			res.Sent++
			continue
		}
		res.Failed++
		if errors.Is(err, ErrExpired) {
			if err := n.store.DeleteSubscriptionByEndpoint(subs[i].Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "error", err)
			}
		} else {
			n.logger.Warn("web push send", "error", err)
		}
	}
	n.metrics.PushResult("web", res.Sent, res.Failed)
	return res
}
