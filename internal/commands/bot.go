package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/watch"
)

// DocumentLister sends a full document listing to a user as a file.
type DocumentLister interface {
	ListDocuments(ctx context.Context, userID, siteURL string, documents []watch.DocumentRef) error
}

// Bot parses chat messages into commands and replies over a transport.
type Bot struct {
	service   *Service
	transport watch.Transport
	lister    DocumentLister
	logger    *zap.Logger
}

// NewBot builds a Bot.
func NewBot(service *Service, transport watch.Transport, lister DocumentLister, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		service:   service,
		transport: transport,
		lister:    lister,
		logger:    logger,
	}
}

const helpText = "Welcome to the website tracking bot!\n\n" +
	"/track <url> - Track a website\n" +
	"/untrack <url> - Stop tracking a website\n" +
	"/list - View tracked websites\n" +
	"/documents <url> - View list of documents"

// Handle processes one inbound message and sends the reply. Non-command
// messages are ignored.
func (b *Bot) Handle(ctx context.Context, userID, text string) {
	command, arg := splitCommand(text)
	if command == "" {
		return
	}

	var reply string
	switch command {
	case "start", "help":
		reply = helpText
	case "track":
		reply = b.track(ctx, userID, arg)
	case "untrack":
		reply = b.untrack(ctx, userID, arg)
	case "list":
		reply = b.list(ctx, userID)
	case "documents":
		reply = b.documents(ctx, userID, arg)
	default:
		reply = "Unknown command. Send /help for the command list."
	}
	if reply == "" {
		return
	}
	if err := b.transport.SendText(ctx, userID, reply); err != nil {
		b.logger.Warn("send reply failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (b *Bot) track(ctx context.Context, userID, arg string) string {
	if arg == "" {
		return "Usage: /track <url>"
	}
	site, err := b.service.Track(ctx, userID, arg)
	switch {
	case errors.Is(err, watch.ErrInvalidURL):
		return "Please enter a valid URL (starting with http/https)"
	case errors.Is(err, watch.ErrAlreadyTracked):
		return "This URL is already being tracked"
	case errors.Is(err, ErrFetchFailed):
		return "Failed to access the URL"
	case err != nil:
		return b.failure(userID, "track", err)
	}
	return fmt.Sprintf("Started tracking: %s\nDocuments found: %d", site.URL, len(site.Documents))
}

func (b *Bot) untrack(ctx context.Context, userID, arg string) string {
	if arg == "" {
		return "Usage: /untrack <url>"
	}
	err := b.service.Untrack(ctx, userID, arg)
	switch {
	case errors.Is(err, watch.ErrNotTracked):
		return "URL not found"
	case err != nil:
		return b.failure(userID, "untrack", err)
	}
	return fmt.Sprintf("Stopped tracking: %s", strings.TrimSpace(arg))
}

func (b *Bot) list(ctx context.Context, userID string) string {
	sites, err := b.service.List(ctx, userID)
	if err != nil {
		return b.failure(userID, "list", err)
	}
	if len(sites) == 0 {
		return "You haven't tracked any URLs yet"
	}
	urls := make([]string, len(sites))
	for i, site := range sites {
		urls[i] = site.URL
	}
	return "Tracked URLs:\n\n" + strings.Join(urls, "\n")
}

func (b *Bot) documents(ctx context.Context, userID, arg string) string {
	if arg == "" {
		return "Usage: /documents <url>"
	}
	docs, err := b.service.Documents(ctx, userID, arg)
	switch {
	case errors.Is(err, watch.ErrNotTracked):
		return "This URL is not being tracked"
	case err != nil:
		return b.failure(userID, "documents", err)
	}
	if len(docs) == 0 {
		return fmt.Sprintf("No documents found at %s", strings.TrimSpace(arg))
	}
	if err := b.lister.ListDocuments(ctx, userID, strings.TrimSpace(arg), docs); err != nil {
		b.logger.Warn("send document list failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return "Error sending documents"
	}
	return ""
}

func (b *Bot) failure(userID, command string, err error) string {
	b.logger.Error("command failed",
		zap.String("user_id", userID),
		zap.String("command", command),
		zap.Error(err),
	)
	return "Something went wrong, please try again later"
}

// splitCommand extracts the command word and its argument from a chat
// message. "/track@somebot https://x" yields ("track", "https://x").
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	parts := strings.SplitN(text, " ", 2)
	command := strings.TrimPrefix(parts[0], "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return strings.ToLower(command), arg
}
