package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/jwalitptl/crm-api/internal/model"
)

// Sender delivers one rendered message
type Sender interface {
	Send(ctx context.Context, msg model.EmailMessage) error
}

type Service interface {
	SendInvitation(ctx context.Context, to, inviterName, organizationName, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
	SendWelcome(ctx context.Context, to, name string) error
}

var templates = template.Must(template.New("email").Parse(`
{{define "invitation"}}<p>Hello,</p>
<p>{{.Inviter}} invited you to join <strong>{{.Organization}}</strong>.</p>
<p><a href="{{.Link}}">Accept the invitation</a>. The link expires in 7 days.</p>{{end}}
{{define "password_reset"}}<p>Hi {{.Name}},</p>
<p>We received a request to reset your password. <a href="{{.Link}}">Choose a new password</a>.</p>
<p>The link expires in 24 hours. If you did not ask for this you can ignore this email.</p>{{end}}
{{define "welcome"}}<p>Hi {{.Name}},</p>
<p>Your account is ready. <a href="{{.Link}}">Sign in</a> to get started.</p>{{end}}
`))

type service struct {
	sender      Sender
	frontendURL string
}

func NewService(sender Sender, frontendURL string) Service {
	return &service{
		sender:      sender,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func (s *service) link(path, token string) string {
	if token == "" {
		return s.frontendURL + path
	}
	return s.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func (s *service) render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", name, err)
	}
	return buf.String(), nil
}

func (s *service) SendInvitation(ctx context.Context, to, inviterName, organizationName, token string) error {
	link := s.link("/accept-invitation", token)
	html, err := s.render("invitation", map[string]string{
		"Inviter":      inviterName,
		"Organization": organizationName,
		"Link":         link,
	})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, model.EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("You're invited to join %s", organizationName),
		Text:    fmt.Sprintf("%s invited you to join %s. Accept the invitation: %s", inviterName, organizationName, link),
		HTML:    html,
	})
}

func (s *service) SendPasswordReset(ctx context.Context, to, name, token string) error {
	link := s.link("/reset-password", token)
	html, err := s.render("password_reset", map[string]string{"Name": name, "Link": link})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, model.EmailMessage{
		To:      to,
		Subject: "Reset your password",
		Text:    fmt.Sprintf("Reset your password: %s (expires in 24 hours)", link),
		HTML:    html,
	})
}

func (s *service) SendWelcome(ctx context.Context, to, name string) error {
	link := s.link("/login", "")
	html, err := s.render("welcome", map[string]string{"Name": name, "Link": link})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, model.EmailMessage{
		To:      to,
		Subject: "Welcome aboard",
		Text:    fmt.Sprintf("Hi %s, your account is ready. Sign in at %s", name, link),
		HTML:    html,
	})
}
