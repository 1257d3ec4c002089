package llm

import (
	"context"
	"log/slog"
	"time"
)

// LoggingProvider is a decorator that logs every completion request.
type LoggingProvider struct {
	inner Provider
}

// WithLogging wraps a Provider with request logging.
func WithLogging(p Provider) Provider {
	return &LoggingProvider{inner: p}
}

func (l *LoggingProvider) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	raw, err := l.inner.Complete(ctx, req)
	latency := time.Since(start)

	if err != nil {
		slog.Error("LLM request failed",
			"model", l.inner.ModelID(),
			"turns", len(req.Messages),
			"latency_ms", latency.Milliseconds(),
			"error", err)
		return "", err
	}
	slog.Info("LLM request completed",
		"model", l.inner.ModelID(),
		"turns", len(req.Messages),
		"latency_ms", latency.Milliseconds(),
		"response_bytes", len(raw))
	slog.Debug("LLM response", "raw", raw)
	return raw, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
