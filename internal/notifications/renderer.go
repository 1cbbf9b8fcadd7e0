package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders notifications from templates.
type Renderer struct {
	templates map[MessageType]*template.Template
	funcMap   template.FuncMap
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":      titleCase,
		"upper":      strings.ToUpper,
		"lower":      strings.ToLower,
		"formatDate": formatDate,
		"formatTime": formatTime,
	}

	r := &Renderer{
		templates: make(map[MessageType]*template.Template),
		funcMap:   funcMap,
	}

	messageTypes := []MessageType{
		MessageTypeWelcome,
		MessageTypeRegistrationConfirmed,
		MessageTypeRegistrationCancelled,
		MessageTypeEventUpdated,
	}

	for _, msg := range messageTypes {
		filename := fmt.Sprintf("templates/%s.tmpl", msg)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(msg)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", msg, err)
		}

		r.templates[msg] = tmpl
	}

	return r, nil
}

// Render renders a notification payload. Returns subject and body.
func (r *Renderer) Render(payload NotificationPayload) (subject, body string, err error) {
	subject = r.renderSubject(payload)

	tmpl, ok := r.templates[payload.MessageType]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", payload.MessageType)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", payload.MessageType, err)
	}

	body = strings.TrimSpace(buf.String())
	return subject, body, nil
}

// renderSubject generates the notification subject line.
func (r *Renderer) renderSubject(payload NotificationPayload) string {
	var title string
	if payload.Event != nil {
		title = payload.Event.Title
	}

	switch payload.MessageType {
	case MessageTypeWelcome:
		return "Welcome to ConfHub"
	case MessageTypeRegistrationConfirmed:
		return fmt.Sprintf("[Registration] %s", title)
	case MessageTypeRegistrationCancelled:
		return fmt.Sprintf("[Cancelled] %s", title)
	case MessageTypeEventUpdated:
		return fmt.Sprintf("[Update] %s", title)
	default:
		return "Notification"
	}
}

// Template functions

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func formatDate(t time.Time) string {
	return t.UTC().Format("Monday, January 2, 2006")
}

func formatTime(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}
