package chat

import (
	"fmt"
	"strings"

	texbot "github.com/alnah/go-texbot"
	"github.com/alnah/go-texbot/internal/config"
)

// Kind identifies a recognized command.
type Kind int

const (
	KindRender Kind = iota
	KindEquation
	KindHelp
)

func (k Kind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindEquation:
		return "equation"
	case KindHelp:
		return "help"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is a parsed chat command.
type Command struct {
	Kind   Kind
	Markup string
}

// Request converts a render or equation command to a pipeline request.
func (c Command) Request() texbot.Request {
	mode := texbot.ModeInline
	if c.Kind == KindEquation {
		mode = texbot.ModeDisplayed
	}
	return texbot.Request{Markup: c.Markup, Mode: mode}
}

// Commands holds the configured command prefixes.
type Commands struct {
	Render   []string // prefix, inline mode
	Equation []string // prefix, displayed mode
	Help     []string // exact match
}

// CommandsFromConfig builds Commands from the bot config section.
func CommandsFromConfig(cfg config.BotConfig) Commands {
	return Commands{
		Render:   cfg.RenderCommands,
		Equation: cfg.EquationCommands,
		Help:     cfg.HelpCommands,
	}
}

// Parse recognizes a command at the start of text. Help commands must match
// the whole message and win over prefixes, so "!texhelp" is never read as
// "!tex help". Render prefixes are tried before equation prefixes. The
// markup is the rest of the message with surrounding whitespace removed.
func (c Commands) Parse(text string) (Command, bool) {
	trimmed := strings.TrimSpace(text)
	for _, h := range c.Help {
		if h != "" && trimmed == h {
			return Command{Kind: KindHelp}, true
		}
	}
	for _, p := range c.Render {
		if p != "" && strings.HasPrefix(text, p) {
			return Command{Kind: KindRender, Markup: strings.TrimSpace(text[len(p):])}, true
		}
	}
	for _, p := range c.Equation {
		if p != "" && strings.HasPrefix(text, p) {
			return Command{Kind: KindEquation, Markup: strings.TrimSpace(text[len(p):])}, true
		}
	}
	return Command{}, false
}

// HelpText returns the built-in usage message for c.
func HelpText(c Commands) string {
	render, eqn := first(c.Render, "!tex"), first(c.Equation, "!eqn")
	return fmt.Sprintf("I render LaTeX. Type %[1]s before your expression on the same line: "+
		"%[1]s $x = 7$ or %[1]s \\[ \\sqrt{a^2 + b^2} = c \\]. "+
		"Use %[2]s for a displayed equation without dollar signs: "+
		"%[2]s \\lim_{n \\to \\infty} \\frac{\\sin n}{n} = 0",
		render, eqn)
}

func first(list []string, fallback string) string {
	for _, s := range list {
		if s != "" {
			return s
		}
	}
	return fallback
}
