package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// layout parses base.html once; each message template is added to a clone
// so content blocks never leak between messages.
var layout = template.Must(template.ParseFS(templateFS, "templates/base.html"))

// frame holds the fields base.html renders around every message.
type frame struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type mentionView struct {
	frame
	RecipientName string
	SenderName    string
	RoomName      string
	Preview       string
}

func render(file string, data any) (string, error) {
	tmpl, err := layout.Clone()
	if err == nil {
		tmpl, err = tmpl.ParseFS(templateFS, "templates/"+file)
	}
	if err != nil {
		return "", fmt.Errorf("email template %s: %w", file, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("email template %s: %w", file, err)
	}
	return buf.String(), nil
}
