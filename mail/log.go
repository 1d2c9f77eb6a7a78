package mail

import (
	"context"
	"log/slog"
)

// LogTransport writes each message to a logger instead of sending it. It is
// meant for local development, where codes and links are read from the log.
type LogTransport struct {
	logger *slog.Logger
	// IncludeBody logs the rendered HTML as well as the envelope.
	IncludeBody bool
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

// Send always reports success.
func (t *LogTransport) Send(ctx context.Context, to, subject, html string) (bool, error) {
	attrs := []slog.Attr{slog.String("to", to), slog.String("subject", subject)}
	if t.IncludeBody {
		attrs = append(attrs, slog.String("html", html))
	}
	t.logger.LogAttrs(ctx, slog.LevelInfo, "email", attrs...)
	return true, nil
}
