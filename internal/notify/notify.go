// Package notify turns classified page deltas into outbound messages.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/watch"
)

// Config controls dispatcher behavior.
type Config struct {
	// WorkDir holds the ephemeral document-list files handed to the
	// transport. Defaults to the OS temp dir.
	WorkDir string
}

// Dispatcher implements watch.Notifier on top of a Transport. Document
// notifications are delivered as a generated text file so a long list
// of links never hits per-message size limits.
type Dispatcher struct {
	cfg       Config
	transport watch.Transport
	clock     watch.Clock
	logger    *zap.Logger
}

// New builds a Dispatcher.
func New(cfg Config, transport watch.Transport, clock watch.Clock, logger *zap.Logger) *Dispatcher {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:       cfg,
		transport: transport,
		clock:     clock,
		logger:    logger,
	}
}

// NotifyChange tells the user that a tracked page changed without any
// new documents appearing.
func (d *Dispatcher) NotifyChange(ctx context.Context, userID, siteURL string) error {
	text := fmt.Sprintf("Change detected on %s", siteURL)
	if err := d.transport.SendText(ctx, userID, text); err != nil {
		return fmt.Errorf("send change notice: %w", err)
	}
	return nil
}

// NotifyDocuments delivers the list of newly discovered documents as a
// text file attachment. The file is removed after the send attempt
// whether or not it succeeded.
func (d *Dispatcher) NotifyDocuments(ctx context.Context, userID, siteURL string, documents []watch.DocumentRef) error {
	if len(documents) == 0 {
		return nil
	}
	caption := fmt.Sprintf("%d new document(s) on %s", len(documents), siteURL)
	return d.sendListing(ctx, userID, siteURL, documents, caption)
}

// ListDocuments delivers the full known document list for a site, in
// the same attachment format as NotifyDocuments.
func (d *Dispatcher) ListDocuments(ctx context.Context, userID, siteURL string, documents []watch.DocumentRef) error {
	if len(documents) == 0 {
		return nil
	}
	caption := fmt.Sprintf("All %d document(s) from %s", len(documents), siteURL)
	return d.sendListing(ctx, userID, siteURL, documents, caption)
}

func (d *Dispatcher) sendListing(ctx context.Context, userID, siteURL string, documents []watch.DocumentRef, caption string) error {
	path, err := d.writeListing(siteURL, documents)
	if err != nil {
		return err
	}
	defer func() {
		if removeErr := os.Remove(path); removeErr != nil {
			d.logger.Warn("remove document listing", zap.String("path", path), zap.Error(removeErr))
		}
	}()

	if err := d.transport.SendFile(ctx, userID, path, caption); err != nil {
		return fmt.Errorf("send document listing: %w", err)
	}
	return nil
}

func (d *Dispatcher) writeListing(siteURL string, documents []watch.DocumentRef) (string, error) {
	var b strings.Builder
	for _, doc := range documents {
		fmt.Fprintf(&b, "%s %s\n", doc.Name, doc.URL)
	}

	name := fmt.Sprintf("%s_documents_%d.txt", hostLabel(siteURL), d.clock.Now().Unix())
	path := filepath.Join(d.cfg.WorkDir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return "", fmt.Errorf("write document listing: %w", err)
	}
	return path, nil
}

// hostLabel derives a filesystem-safe label from the site URL.
func hostLabel(siteURL string) string {
	parsed, err := url.Parse(siteURL)
	if err != nil || parsed.Hostname() == "" {
		return "site"
	}
	return strings.ReplaceAll(parsed.Hostname(), ".", "_")
}
