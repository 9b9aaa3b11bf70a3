// Package log provides a Transport that only logs outbound messages.
// It is the default when no chat credentials are configured.
package log

import (
	"context"

	"go.uber.org/zap"
)

// Transport logs every message instead of delivering it.
type Transport struct {
	logger *zap.Logger
}

// New builds a Transport.
func New(logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{logger: logger}
}

// SendText logs the text message.
func (t *Transport) SendText(_ context.Context, userID, text string) error {
	t.logger.Info("outbound text",
		zap.String("user_id", userID),
		zap.String("text", text),
	)
	return nil
}

// SendFile logs the file message.
func (t *Transport) SendFile(_ context.Context, userID, path, caption string) error {
	t.logger.Info("outbound file",
		zap.String("user_id", userID),
		zap.String("path", path),
		zap.String("caption", caption),
	)
	return nil
}
