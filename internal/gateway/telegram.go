package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramMessageLimit is Telegram's maximum message length.
const telegramMessageLimit = 4096

type TelegramGateway struct {
	Bot        *tgbotapi.BotAPI
	Dispatcher *Dispatcher
	ctx        context.Context
	queue      *chatQueue
}

func NewTelegramGateway(ctx context.Context, token string, dispatcher *Dispatcher) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:        bot,
		Dispatcher: dispatcher,
		ctx:        ctx,
		queue:      newChatQueue(),
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}

		sender := update.Message.Chat.Title
		if update.Message.From != nil {
			sender = update.Message.From.UserName
		}
		log.Printf("[%s] %s", sender, update.Message.Text)

		chat := update.Message.Chat.ID
		chatID := "telegram:" + strconv.FormatInt(chat, 10)
		text := update.Message.Text

		// One chat's messages run in update order; other chats are not held up.
		tg.queue.Submit(chatID, func() {
			if err := tg.Dispatcher.Handle(tg.ctx, "telegram", chatID, text, tg.presenter(chat)); err != nil {
				log.Printf("[%s] %v", chatID, err)
			}
		})
	}
	tg.queue.Wait()
	return nil
}

func (tg *TelegramGateway) presenter(chat int64) *chatPresenter {
	return &chatPresenter{
		send: func(text string) error {
			_, err := tg.Bot.Send(tgbotapi.NewMessage(chat, text))
			return err
		},
		typing: func() error {
			_, err := tg.Bot.Request(tgbotapi.NewChatAction(chat, tgbotapi.ChatTyping))
			return err
		},
		limit: telegramMessageLimit,
	}
}

// Send accepts either a bare chat ID or a "telegram:<id>" session ID.
func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(strings.TrimPrefix(chatID, "telegram:"), 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	tg.presenter(id).post(text)
	return nil
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
