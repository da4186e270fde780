package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	texbot "github.com/alnah/go-texbot"
	"github.com/alnah/go-texbot/internal/publish"
)

// Incoming is a message received from a chat platform.
type Incoming struct {
	ID      string // platform message id, used for threaded replies
	Channel string
	User    string
	Text    string
}

// Message is a reply sent to a chat platform.
type Message struct {
	Channel string
	ReplyTo string // platform message id; empty for a plain message
	Text    string
}

// Sender delivers replies to a chat platform.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Renderer runs render requests. *texbot.Pipeline implements it.
type Renderer interface {
	Render(ctx context.Context, req texbot.Request) texbot.Outcome
}

// CommandCounter counts recognized commands.
type CommandCounter interface {
	CommandReceived(command string)
}

var _ Renderer = (*texbot.Pipeline)(nil)

// ErrNoSender is returned by Handle when the bot has no Sender.
var ErrNoSender = errors.New("chat: no sender configured")

// Bot answers chat commands. It is safe for concurrent use.
type Bot struct {
	Commands  Commands
	Filter    ChannelFilter
	Renderer  Renderer
	Publisher publish.Publisher
	Sender    Sender
	// HelpText overrides the built-in usage message.
	HelpText string
	Logger   logrus.FieldLogger
	Counter  CommandCounter
}

// Handle processes one incoming message. Messages that are not commands, or
// come from filtered channels, are ignored. The returned error is a send
// failure; render failures are reported to the user, not returned.
func (b *Bot) Handle(ctx context.Context, in Incoming) error {
	if !b.Filter.Allowed(in.Channel) {
		return nil
	}
	cmd, ok := b.Commands.Parse(in.Text)
	if !ok {
		return nil
	}
	if b.Sender == nil {
		return ErrNoSender
	}
	if b.Counter != nil {
		b.Counter.CommandReceived(cmd.Kind.String())
	}

	id := uuid.NewString()
	ctx = texbot.WithRequestID(ctx, id)
	log := b.logger().WithFields(logrus.Fields{
		"request_id": id,
		"channel":    in.Channel,
		"user":       in.User,
		"command":    cmd.Kind.String(),
	})

	if cmd.Kind == KindHelp {
		log.Debug("showing help")
		return b.reply(ctx, in, b.help())
	}

	log.WithField("markup", cmd.Markup).Info("render requested")
	out := b.Renderer.Render(ctx, cmd.Request())
	return b.reply(ctx, in, b.answer(ctx, out, log))
}

// answer builds the reply text for a finished render.
func (b *Bot) answer(ctx context.Context, out texbot.Outcome, log logrus.FieldLogger) string {
	if !out.Delivered() {
		if out.Report != nil {
			return out.Report.Message()
		}
		return texbot.GenericMessage
	}
	if b.Publisher == nil {
		return texbot.GenericMessage
	}

	link, err := b.Publisher.Publish(ctx, texbot.ArtifactSet{Key: out.Key, Image: out.Image})
	if err != nil {
		log.WithError(err).Error("publish failed")
		return texbot.GenericMessage
	}
	return link
}

func (b *Bot) reply(ctx context.Context, in Incoming, text string) error {
	err := b.Sender.Send(ctx, Message{Channel: in.Channel, ReplyTo: in.ID, Text: text})
	if err != nil {
		return fmt.Errorf("replying in %s: %w", in.Channel, err)
	}
	return nil
}

func (b *Bot) help() string {
	if b.HelpText != "" {
		return b.HelpText
	}
	return HelpText(b.Commands)
}

func (b *Bot) logger() logrus.FieldLogger {
	if b.Logger != nil {
		return b.Logger
	}
	return logrus.StandardLogger()
}
