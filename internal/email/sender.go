// Package email delivers the messages the service sends outside the push
// channel. Today that is the mention email for offline subscribers.
package email

import (
	"context"
	"fmt"
)

// Mention describes one chat mention delivered by email.
type Mention struct {
	RecipientName string
	SenderName    string
	RoomName      string
	Preview       string
	RoomURL       string
}

type Sender interface {
	SendMentionEmail(ctx context.Context, toEmail string, mention Mention) error
}

// NoopSender is used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendMentionEmail(context.Context, string, Mention) error { return nil }

// renderMention returns the subject and HTML body for m.
func renderMention(m Mention) (string, string, error) {
	sender := orDefault(m.SenderName, "A colleague")
	room := orDefault(m.RoomName, "a conversation")

	body, err := render("mention.html", mentionView{
		frame: frame{
			Title:    "New mention",
			Heading:  "You were mentioned",
			CTALabel: "Open conversation",
			CTAURL:   m.RoomURL,
		},
		RecipientName: orDefault(m.RecipientName, "there"),
		SenderName:    sender,
		RoomName:      room,
		Preview:       m.Preview,
	})
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf("%s mentioned you in %s", sender, room), body, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
