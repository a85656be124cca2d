package email

import (
	"context"
	"net"
	"strings"
	"testing"
)

type smtpTestConfig struct {
	host string
	port int
	from string
}

func (c smtpTestConfig) GetSMTPHost() string      { return c.host }
func (c smtpTestConfig) GetSMTPPort() int         { return c.port }
func (c smtpTestConfig) GetSMTPUsername() string  { return "" }
func (c smtpTestConfig) GetSMTPPassword() string  { return "" }
func (c smtpTestConfig) GetSMTPFromEmail() string { return c.from }
func (c smtpTestConfig) GetSMTPFromName() string  { return "Solar Portal" }
func (c smtpTestConfig) IsSMTPEnabled() bool      { return c.host != "" && c.from != "" }

func TestRenderMention(t *testing.T) {
	subject, body, err := renderMention(Mention{
		RecipientName: "Carol",
		SenderName:    "Alice",
		RoomName:      "Roof survey",
		Preview:       "can you check <b>the quote</b>?",
		RoomURL:       "https://app.example.com/chat/rooms/1",
	})
	if err != nil {
		t.Fatalf("renderMention: %v", err)
	}
	if subject != "Alice mentioned you in Roof survey" {
		t.Fatalf("unexpected subject %q", subject)
	}
	for _, want := range []string{"Hi Carol", "Roof survey", "https://app.example.com/chat/rooms/1", "&lt;b&gt;the quote&lt;/b&gt;"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q:\n%s", want, body)
		}
	}
}

func TestRenderMentionDefaults(t *testing.T) {
	subject, body, err := renderMention(Mention{Preview: "hello"})
	if err != nil {
		t.Fatalf("renderMention: %v", err)
	}
	if subject != "A colleague mentioned you in a conversation" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if strings.Contains(body, "Open conversation") {
		t.Fatalf("call to action must be omitted without a room url")
	}
}

func TestNewSender(t *testing.T) {
	if _, ok := NewSender(smtpTestConfig{}).(NoopSender); !ok {
		t.Fatal("expected NoopSender without SMTP host")
	}
	if _, ok := NewSender(smtpTestConfig{host: "smtp.example.com", from: "crm@example.com"}).(*SMTPSender); !ok {
		t.Fatal("expected SMTPSender when SMTP is configured")
	}
}

func TestSMTPSenderReportsDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	_ = ln.Close()

	sender := NewSMTPSender(smtpTestConfig{host: "127.0.0.1", port: addr.Port, from: "crm@example.com"})
	err = sender.SendMentionEmail(context.Background(), "carol@example.com", Mention{Preview: "hi"})
	if err == nil || !strings.Contains(err.Error(), "smtp send") {
		t.Fatalf("expected smtp send error, got %v", err)
	}
}
