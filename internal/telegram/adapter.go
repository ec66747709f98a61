// Package telegram bridges Telegram chats to the gateway as a delivery
// frontend. Each user/chat pair maps to its own thread.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rubenqba/llm-assistant-api/internal/format"
	"github.com/rubenqba/llm-assistant-api/internal/gateway"
	"github.com/rubenqba/llm-assistant-api/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram to the gateway.
type Adapter struct {
	bot    *tgbotapi.BotAPI
	gw     *gateway.Gateway
	store  types.CheckpointStore
	router *format.Router
	logger *slog.Logger
}

// New creates a Telegram adapter.
func New(token string, gw *gateway.Gateway, store types.CheckpointStore, router *format.Router, logger *slog.Logger) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		bot:    bot,
		gw:     gw,
		store:  store,
		router: router,
		logger: logger,
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	thread := buildThread(msg.From.ID, msg.Chat.ID)

	_, err := a.gw.Submit(thread, msg.Text,
		gateway.WithChannel(string(format.ChannelWeb)),
		gateway.WithOnComplete(func(response string) {
			a.deliverFormatted(context.WithoutCancel(ctx), chatID, response)
		}),
		gateway.WithOnError(func(err error) {
			a.logger.Error("telegram turn failed", "thread", string(thread), "error", err)
			a.sendResponse(chatID, "Sorry, I ran into a problem mixing that one up. Try again?")
		}),
	)
	if err != nil {
		a.logger.Error("submit turn failed", "thread", string(thread), "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hola! I'm your personal mixologist. Name a drink, an ingredient, or a mood and I'll find you something to shake up.")

	case "status":
		thread := buildThread(msg.From.ID, msg.Chat.ID)
		count, err := a.store.Count(ctx, thread)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Conversation: %s\nEntries: %d", thread, count))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /status")
	}
}

// deliverFormatted runs the response through the web formatting pass
// (Telegram renders Markdown) before sending, falling back to raw text.
func (a *Adapter) deliverFormatted(ctx context.Context, chatID int64, response string) {
	segments, err := a.router.Format(ctx, response, format.ChannelWeb)
	if err != nil {
		a.logger.Warn("formatting failed, using fallback", "error", err)
		segments = format.Fallback(response, format.ChannelWeb)
	}
	for _, segment := range segments {
		a.sendResponse(chatID, segment)
	}
}

// Deliver implements the delivery registry contract for threads created by
// this adapter ("telegram:<user>:<chat>").
func (a *Adapter) Deliver(thread types.ThreadID, segments []string) error {
	_, chatID, err := parseThread(thread)
	if err != nil {
		return err
	}
	for _, segment := range segments {
		a.sendResponse(chatID, segment)
	}
	return nil
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				a.logger.Error("send message failed", "chat_id", chatID, "error", err)
			}
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func buildThread(userID, chatID int64) types.ThreadID {
	return types.NewThreadID("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}

func parseThread(thread types.ThreadID) (userID, chatID int64, err error) {
	parts := strings.Split(string(thread), ":")
	if len(parts) != 3 || parts[0] != "telegram" {
		return 0, 0, fmt.Errorf("not a telegram thread: %s", thread)
	}
	userID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed telegram thread: %s", thread)
	}
	chatID, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed telegram thread: %s", thread)
	}
	return userID, chatID, nil
}
