package chat

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/alnah/go-texbot/internal/config"
)

// TwitchMessageLimit is the longest message Twitch accepts, in characters.
const TwitchMessageLimit = 500

// ircClient is the subset of *twitch.Client used to send.
type ircClient interface {
	Say(channel, text string)
	Reply(channel, parentMsgID, text string)
}

// Twitch is a chat transport for Twitch IRC.
type Twitch struct {
	client   *twitch.Client
	sender   ircClient
	channels []string
	inFlight int64
	log      logrus.FieldLogger
}

var _ Sender = (*Twitch)(nil)

// NewTwitch creates a Twitch transport from cfg. Call Run to connect.
func NewTwitch(cfg config.TwitchConfig, log logrus.FieldLogger) *Twitch {
	client := twitch.NewClient(cfg.Username, cfg.Token)
	return &Twitch{
		client:   client,
		sender:   client,
		channels: cfg.Channels,
		inFlight: int64(runtime.GOMAXPROCS(0) * 2),
		log:      log,
	}
}

// Send implements Sender. Newlines are flattened and long texts are split,
// since IRC messages are single lines. Only the first part is threaded.
func (t *Twitch) Send(_ context.Context, m Message) error {
	if m.Channel == "" {
		return errors.New("twitch: empty channel")
	}
	for i, part := range splitMessage(m.Text, TwitchMessageLimit) {
		if i == 0 && m.ReplyTo != "" {
			t.sender.Reply(m.Channel, m.ReplyTo, part)
			continue
		}
		t.sender.Say(m.Channel, part)
	}
	return nil
}

// Run joins the configured channels and feeds messages to bot until ctx is
// done. Each message is handled on its own goroutine; at most a fixed number
// run at once, the rest wait.
func (t *Twitch) Run(ctx context.Context, bot *Bot) error {
	sem := semaphore.NewWeighted(t.inFlight)
	var wg sync.WaitGroup

	t.client.OnConnect(func() {
		t.log.WithField("channels", t.channels).Info("twitch connected")
	})
	t.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		in := Incoming{ID: msg.ID, Channel: msg.Channel, User: msg.User.Name, Text: msg.Message}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			if err := bot.Handle(ctx, in); err != nil {
				t.log.WithError(err).Warn("twitch reply failed")
			}
		}()
	})
	t.client.Join(t.channels...)

	go func() {
		<-ctx.Done()
		_ = t.client.Disconnect()
	}()

	err := t.client.Connect()
	wg.Wait()
	if errors.Is(err, twitch.ErrClientDisconnected) || ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("twitch connect: %w", err)
	}
	return nil
}

// splitMessage flattens text to one line and cuts it into parts of at most
// limit runes, preferring to break at spaces.
func splitMessage(text string, limit int) []string {
	flat := strings.Join(strings.Fields(text), " ")
	if flat == "" {
		return nil
	}

	var parts []string
	runes := []rune(flat)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
