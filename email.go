package siteAuth

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
)

var (
	codeTemplate = template.Must(template.New("code").Parse(
		`<p>Your {{.Product}} sign-in code is <strong>{{.Code}}</strong>.</p>` +
			`<p>It expires in {{.Minutes}} minutes. If you did not try to sign in, you can ignore this email.</p>`))

	activationTemplate = template.Must(template.New("activation").Parse(
		`<p>Welcome to {{.Product}}.</p>` +
			`<p><a href="{{.Link}}">Activate your account</a></p>` +
			`<p>The link expires in {{.Hours}} hours.</p>`))

	resetTemplate = template.Must(template.New("reset").Parse(
		`<p>A password reset was requested for your {{.Product}} account.</p>` +
			`<p><a href="{{.Link}}">Choose a new password</a></p>` +
			`<p>The link expires in {{.Minutes}} minutes. If you did not ask for this, ignore this email.</p>`))
)

type renderedEmail struct {
	subject string
	html    string
}

func render(t *template.Template, subject string, data any) (renderedEmail, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return renderedEmail{}, err
	}
	return renderedEmail{subject: subject, html: buf.String()}, nil
}

// linkBase picks the production URL when forced, otherwise the public URL.
func (e *Engine) linkBase() string {
	if e.config.Email.ForceProductionLinks && e.config.Email.ProductionURL != "" {
		return e.config.Email.ProductionURL
	}
	if e.config.Email.PublicURL != "" {
		return e.config.Email.PublicURL
	}
	return e.config.Email.ProductionURL
}

// buildLink joins the base URL, path and a token query parameter.
func (e *Engine) buildLink(path, token string) string {
	base := strings.TrimRight(e.linkBase(), "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path + "?token=" + url.QueryEscape(token)
}

// deliver hands msg to the transport and never fails the calling flow. It
// reports whether the transport accepted the message.
func (e *Engine) deliver(ctx context.Context, to string, msg renderedEmail) bool {
	if e.mailer == nil {
		return false
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.Email.SendTimeout)
	defer cancel()

	sent, err := e.mailer.Send(sendCtx, to, msg.subject, msg.html)
	if err != nil || !sent {
		e.metricInc(MetricEmailSendFailure)
		e.logger.Warn("email delivery failed", slog.String("subject", msg.subject), slog.Any("error", err))
		return false
	}
	return true
}
