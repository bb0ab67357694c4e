// Package telegram delivers messages and receives commands through the
// Telegram Bot API.
//
// [Bot] wraps go-telegram-bot-api with a retrying HTTP client. All outgoing
// calls honor context cancellation even though the underlying library does
// not; a cancelled send is abandoned, not interrupted.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/stib/internal/logger"
)

// ListenerWorker is the worker name the update listener logs under.
const ListenerWorker = "TelegramListener"

var (
	// ErrNoRecipient is returned by [Bot.Notify] when no chat id is set.
	ErrNoRecipient = errors.New("no recipient chat configured")
	// errUpdatesClosed reports that the library stopped delivering updates.
	errUpdatesClosed = errors.New("update channel closed")
)

// Options configures a [Bot].
type Options struct {
	Token string
	// ChatID receives [Bot.Notify] messages and is the only chat whose
	// commands are answered unless AllowOtherChats is set.
	ChatID int64
	// Endpoint is the API URL format; defaults to [tgbotapi.APIEndpoint].
	Endpoint        string
	PollTimeout     time.Duration
	RetryMax        int
	AllowOtherChats bool
	Logger          *slog.Logger
}

// Bot is an authenticated Telegram bot.
type Bot struct {
	api         *tgbotapi.BotAPI
	chatID      int64
	pollTimeout time.Duration
	allowOther  bool
	log         *slog.Logger
	stopOnce    sync.Once
}

// New authenticates with the Bot API (getMe) and returns a ready bot.
func New(opts Options) (*Bot, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if err := tgbotapi.SetLogger(botLogger{log: log.With("component", "tgbotapi")}); err != nil {
		return nil, fmt.Errorf("set bot logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPIWithClient(opts.Token, endpoint, newHTTPClient(opts.RetryMax, opts.PollTimeout))
	if err != nil {
		return nil, fmt.Errorf("authenticate bot: %w", err)
	}
	log.Info("authorized on telegram", "bot", api.Self.UserName)

	return &Bot{
		api:         api,
		chatID:      opts.ChatID,
		pollTimeout: opts.PollTimeout,
		allowOther:  opts.AllowOtherChats,
		log:         log,
	}, nil
}

// newHTTPClient returns a retrying client whose per-attempt timeout leaves
// room for a full long poll.
func newHTTPClient(retryMax int, pollTimeout time.Duration) tgbotapi.HTTPClient {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.HTTPClient.Timeout = pollTimeout + 10*time.Second
	c.Logger = nil
	return c.StandardClient()
}

// Username returns the bot's @username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Send delivers text to chatID.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify delivers text to the configured recipient.
func (b *Bot) Notify(ctx context.Context, text string) error {
	if b.chatID == 0 {
		return ErrNoRecipient
	}
	return b.Send(ctx, b.chatID, text)
}

// SetCommands publishes the router's commands as the bot's command menu.
func (b *Bot) SetCommands(r *Router) error {
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(r.Commands()...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

// Listen long-polls for updates and answers commands through r until ctx is
// cancelled. It returns nil on cancellation and an error if the update
// stream ends on its own. Listen may be called once per Bot.
func (b *Bot) Listen(ctx context.Context, r *Router) error {
	log := logger.ForWorker(b.log, ListenerWorker)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout / time.Second)
	updates := b.api.GetUpdatesChan(u)
	defer b.stopReceiving()

	log.Debug("listening for commands")
	for {
		select {
		case <-ctx.Done():
			log.Debug("listener stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return errUpdatesClosed
			}
			b.handle(ctx, log, r, upd)
		}
	}
}

// stopReceiving ends the library's polling goroutine. The in-flight long poll
// is abandoned.
func (b *Bot) stopReceiving() {
	b.stopOnce.Do(b.api.StopReceivingUpdates)
}

func (b *Bot) handle(ctx context.Context, log *slog.Logger, r *Router, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID
	if chatID != b.chatID && !b.allowOther {
		log.Warn("ignoring command from unknown chat", "chat", chatID, "command", msg.Command())
		return
	}

	cmd := Command{
		Name:   msg.Command(),
		Args:   strings.TrimSpace(msg.CommandArguments()),
		ChatID: chatID,
	}
	log.Info("command received", "command", cmd.Name, "chat", chatID)

	reply := r.Dispatch(cmd)
	if reply == "" {
		return
	}
	if err := b.Send(ctx, chatID, reply); err != nil && ctx.Err() == nil {
		log.Warn("reply not delivered", "command", cmd.Name, "error", err)
	}
}

// botLogger routes the library's internal logging into slog at debug level.
type botLogger struct {
	log *slog.Logger
}

func (l botLogger) Println(v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
