// Package memory provides an in-process Transport for tests and local
// development.
package memory

import (
	"context"
	"os"
	"sync"
)

// TextMessage is one recorded SendText call.
type TextMessage struct {
	UserID string
	Text   string
}

// FileMessage is one recorded SendFile call. Content holds the file
// bytes read at send time, since callers may delete the file after.
type FileMessage struct {
	UserID  string
	Path    string
	Caption string
	Content []byte
}

// Transport records every outbound message in memory.
type Transport struct {
	mu    sync.Mutex
	texts []TextMessage
	files []FileMessage

	// FailSends, when set, makes every send return this error.
	FailSends error
}

// New creates an empty recording transport.
func New() *Transport {
	return &Transport{}
}

// SendText records a text message.
func (t *Transport) SendText(_ context.Context, userID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailSends != nil {
		return t.FailSends
	}
	t.texts = append(t.texts, TextMessage{UserID: userID, Text: text})
	return nil
}

// SendFile records a file message, capturing the file contents.
func (t *Transport) SendFile(_ context.Context, userID, path, caption string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailSends != nil {
		return t.FailSends
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	t.files = append(t.files, FileMessage{
		UserID:  userID,
		Path:    path,
		Caption: caption,
		Content: content,
	})
	return nil
}

// Texts returns a copy of the recorded text messages.
func (t *Transport) Texts() []TextMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TextMessage, len(t.texts))
	copy(out, t.texts)
	return out
}

// Files returns a copy of the recorded file messages.
func (t *Transport) Files() []FileMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]FileMessage, len(t.files))
	copy(out, t.files)
	return out
}
