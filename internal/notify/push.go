package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mrwolf/studyrank/internal/logger"
)

// Message is the content of a reminder.
type Message struct {
	Title    string
	Body     string
	Deeplink string
}

// Reminder is the message sent to users who have not submitted yet.
var Reminder = Message{
	Title:    "1分以内に学習再開！",
	Body:     "勉強を再開して23時59分までに今日の学習記録を提出しよう！",
	Deeplink: "/today",
}

// Pusher delivers a message to device tokens.
type Pusher interface {
	Send(ctx context.Context, tokens []string, msg Message) error
}

// FCMClient sends through the FCM HTTP endpoint using a server key.
type FCMClient struct {
	http *resty.Client
	url  string
}

func NewFCMClient(url, serverKey string) *FCMClient {
	client := resty.New().
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "key="+serverKey)
	return &FCMClient{http: client, url: url}
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data"`
	Priority        string            `json:"priority"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

func (c *FCMClient) Send(ctx context.Context, tokens []string, msg Message) error {
	var out fcmResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(fcmRequest{
			RegistrationIDs: tokens,
			Notification:    fcmNotification{Title: msg.Title, Body: msg.Body},
			Data:            map[string]string{"deeplink": msg.Deeplink},
			Priority:        "high",
		}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("sending push: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("push provider returned %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Failure > 0 {
		return fmt.Errorf("push provider reported %d of %d deliveries failed", out.Failure, len(tokens))
	}
	return nil
}

// LogPusher only logs. Used when no provider key is configured.
type LogPusher struct {
	Log *logger.Logger
}

func (p LogPusher) Send(_ context.Context, tokens []string, msg Message) error {
	p.Log.Info("push delivery disabled, would send", "tokens", len(tokens), "title", msg.Title)
	return nil
}
