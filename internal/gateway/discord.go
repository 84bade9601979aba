package gateway

import (
	"context"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// discordMessageLimit is Discord's maximum message length.
const discordMessageLimit = 2000

type DiscordGateway struct {
	Session    *discordgo.Session
	Dispatcher *Dispatcher
	ctx        context.Context
	done       chan struct{}
	queue      *chatQueue
}

func NewDiscordGateway(ctx context.Context, token string, dispatcher *Dispatcher) (*DiscordGateway, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent
	// Deliver events in order; long work is moved off the event loop by the queue.
	dg.SyncEvents = true

	g := &DiscordGateway{
		Session:    dg,
		Dispatcher: dispatcher,
		ctx:        ctx,
		done:       make(chan struct{}),
		queue:      newChatQueue(),
	}
	dg.AddHandler(g.onMessage)
	return g, nil
}

func (g *DiscordGateway) Start() error {
	if err := g.Session.Open(); err != nil {
		return err
	}
	if g.Session.State.User != nil {
		log.Printf("Connected to Discord as %s", g.Session.State.User.Username)
	}
	<-g.done
	g.queue.Wait()
	return nil
}

func (g *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Content == "" {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	log.Printf("[%s] %s", m.Author.Username, m.Content)

	// One channel's messages run in order; other channels are not held up.
	chatID := "discord:" + m.ChannelID
	channelID, text := m.ChannelID, m.Content
	g.queue.Submit(chatID, func() {
		if err := g.Dispatcher.Handle(g.ctx, "discord", chatID, text, g.presenter(channelID)); err != nil {
			log.Printf("[%s] %v", chatID, err)
		}
	})
}

func (g *DiscordGateway) presenter(channelID string) *chatPresenter {
	return &chatPresenter{
		send: func(text string) error {
			_, err := g.Session.ChannelMessageSend(channelID, text)
			return err
		},
		typing: func() error {
			return g.Session.ChannelTyping(channelID)
		},
		limit: discordMessageLimit,
	}
}

func (g *DiscordGateway) Send(chatID string, text string) error {
	g.presenter(strings.TrimPrefix(chatID, "discord:")).post(text)
	return nil
}

func (g *DiscordGateway) Stop() error {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
	return g.Session.Close()
}
