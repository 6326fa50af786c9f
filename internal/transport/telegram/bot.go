package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/internal/service/command"
	"github.com/sandevgo/mythic/internal/service/orchestrator"
	"github.com/sandevgo/mythic/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

// Session is the part of the orchestrator the bot drives.
type Session interface {
	HandleInput(ctx context.Context, text string) (orchestrator.TurnResult, error)
	FallbackText() string
}

type Bot struct {
	bot     *tele.Bot
	sender  *sender
	session Session
	router  *command.Router
	ownerID int64
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	session Session,
	router *command.Router,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:     b,
		sender:  newSender(b),
		session: session,
		router:  router,
		ownerID: cfg.OwnerID,
	}

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})
	b.Use(bot.ownerOnly)

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

// ownerOnly drops updates from anyone but the configured owner.
func (b *Bot) ownerOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Sender() == nil || c.Sender().ID != b.ownerID {
			return nil
		}
		return next(c)
	}
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func baseContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(baseContextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := baseContext(c)
	logger := log.FromCtx(ctx)

	if result, ok := b.router.Execute(ctx, c.Text()); ok {
		return b.sender.sendMarkdown(ctx, c.Chat(), result, true)
	}

	// Notify user we are working
	_ = c.Notify(tele.Typing)

	reply, err := b.reply(ctx, c.Text())
	if err != nil {
		logger.Error().Err(err).Msg("turn failed")
	}
	if reply == "" {
		return nil
	}
	return b.sender.sendMarkdown(ctx, c.Chat(), reply, false)
}

// reply runs a turn and returns the text to send back, which is the fallback
// when the turn failed.
func (b *Bot) reply(ctx context.Context, text string) (string, error) {
	res, err := b.session.HandleInput(ctx, text)
	switch {
	case err == nil:
		return res.Response, nil
	case errors.Is(err, orchestrator.ErrEmptyInput):
		return "", nil
	case errors.Is(err, orchestrator.ErrStopped), errors.Is(err, orchestrator.ErrNotStarted):
		return "", err
	default:
		return b.session.FallbackText(), err
	}
}
