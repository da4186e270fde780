package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-texbot/internal/config"
)

// Shell is a supported shell for completion scripts.
type Shell string

// Supported shells.
const (
	ShellBash Shell = "bash"
	ShellZsh  Shell = "zsh"
	ShellFish Shell = "fish"
)

// ErrUnsupportedShell is returned when an unknown shell is requested.
var ErrUnsupportedShell = errors.New("unsupported shell")

// flagDef describes one flag for completion.
type flagDef struct {
	Long   string
	Short  string
	Desc   string
	Bool   bool
	Values []string // fixed choices, if any
	Files  bool     // complete file names
}

// commandDef describes one command for completion.
type commandDef struct {
	Name  string
	Desc  string
	Flags []flagDef
}

// flagValues lists the fixed choices of enum-like flags.
var flagValues = map[string][]string{
	"mode":     {"inline", "displayed"},
	"renderer": {config.RendererLocal, config.RendererRemote, config.RendererBrowser},
}

// fileFlags complete to file or directory names.
var fileFlags = map[string]bool{"config": true, "output": true, "work-dir": true}

// flagDefs reads flag definitions back from a FlagSet, so completion never
// drifts from what the parser accepts.
func flagDefs(fs *flag.FlagSet) []flagDef {
	var defs []flagDef
	fs.VisitAll(func(f *flag.Flag) {
		defs = append(defs, flagDef{
			Long:   f.Name,
			Short:  f.Shorthand,
			Desc:   f.Usage,
			Bool:   f.Value.Type() == "bool",
			Values: flagValues[f.Name],
			Files:  fileFlags[f.Name],
		})
	})
	sort.Slice(defs, func(i, j int) bool { return defs[i].Long < defs[j].Long })
	return defs
}

// commands returns the completion registry.
func commands() []commandDef {
	var jsonOut bool
	var cfgName string
	return []commandDef{
		{Name: "serve", Desc: "Run the chat bot and HTTP server", Flags: flagDefs(newServeFlagSet(&serveFlags{}))},
		{Name: "render", Desc: "Render one expression to PNG", Flags: flagDefs(newRenderFlagSet(&renderFlags{}))},
		{Name: "doctor", Desc: "Check the toolchain and environment", Flags: flagDefs(newDoctorFlagSet(&jsonOut, &cfgName))},
		{Name: "version", Desc: "Show version information"},
		{Name: "help", Desc: "Show help for a command"},
		{Name: "completion", Desc: "Generate a shell completion script"},
	}
}

// GenerateCompletion writes the completion script for shell to w.
func GenerateCompletion(w io.Writer, shell Shell) error {
	switch shell {
	case ShellBash:
		return generateBash(w, commands())
	case ShellZsh:
		// zsh loads bash completions through bashcompinit.
		if _, err := fmt.Fprintln(w, "autoload -U +X bashcompinit && bashcompinit"); err != nil {
			return err
		}
		return generateBash(w, commands())
	case ShellFish:
		return generateFish(w, commands())
	default:
		return fmt.Errorf("%w: %q (supported: bash, zsh, fish)", ErrUnsupportedShell, shell)
	}
}

func generateBash(w io.Writer, cmds []commandDef) error {
	var b strings.Builder
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Name)
	}

	b.WriteString("# bash completion for texbot\n")
	b.WriteString("_texbot() {\n")
	b.WriteString("    local cur prev cmd\n")
	b.WriteString("    cur=\"${COMP_WORDS[COMP_CWORD]}\"\n")
	b.WriteString("    prev=\"${COMP_WORDS[COMP_CWORD-1]}\"\n")
	b.WriteString("    cmd=\"${COMP_WORDS[1]}\"\n\n")
	b.WriteString("    if [[ ${COMP_CWORD} -eq 1 ]]; then\n")
	fmt.Fprintf(&b, "        COMPREPLY=($(compgen -W %q -- \"$cur\"))\n", strings.Join(names, " "))
	b.WriteString("        return\n    fi\n\n")

	b.WriteString("    case \"$prev\" in\n")
	for _, pat := range valuePatterns(cmds) {
		fmt.Fprintf(&b, "        %s)\n", pat.flags)
		if pat.files {
			b.WriteString("            COMPREPLY=($(compgen -f -- \"$cur\"))\n")
		} else {
			fmt.Fprintf(&b, "            COMPREPLY=($(compgen -W %q -- \"$cur\"))\n", strings.Join(pat.values, " "))
		}
		b.WriteString("            return\n            ;;\n")
	}
	b.WriteString("    esac\n\n")

	b.WriteString("    case \"$cmd\" in\n")
	for _, c := range cmds {
		switch {
		case c.Name == "help":
			fmt.Fprintf(&b, "        help)\n            COMPREPLY=($(compgen -W %q -- \"$cur\"))\n            ;;\n", strings.Join(names, " "))
		case c.Name == "completion":
			b.WriteString("        completion)\n            COMPREPLY=($(compgen -W \"bash zsh fish\" -- \"$cur\"))\n            ;;\n")
		case len(c.Flags) > 0:
			fmt.Fprintf(&b, "        %s)\n            COMPREPLY=($(compgen -W %q -- \"$cur\"))\n            ;;\n", c.Name, strings.Join(flagWords(c.Flags), " "))
		}
	}
	b.WriteString("    esac\n}\n")
	b.WriteString("complete -F _texbot texbot\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// valuePattern groups the spellings of a flag that takes a value.
type valuePattern struct {
	flags  string // "-m|--mode"
	values []string
	files  bool
}

func valuePatterns(cmds []commandDef) []valuePattern {
	seen := make(map[string]bool)
	var out []valuePattern
	for _, c := range cmds {
		for _, f := range c.Flags {
			if f.Bool || seen[f.Long] || (len(f.Values) == 0 && !f.Files) {
				continue
			}
			seen[f.Long] = true
			spell := "--" + f.Long
			if f.Short != "" {
				spell = "-" + f.Short + "|" + spell
			}
			out = append(out, valuePattern{flags: spell, values: f.Values, files: f.Files})
		}
	}
	return out
}

func flagWords(flags []flagDef) []string {
	words := make([]string, 0, len(flags)*2)
	for _, f := range flags {
		words = append(words, "--"+f.Long)
		if f.Short != "" {
			words = append(words, "-"+f.Short)
		}
	}
	return words
}

func generateFish(w io.Writer, cmds []commandDef) error {
	var b strings.Builder
	b.WriteString("# fish completion for texbot\n")
	b.WriteString("complete -c texbot -f\n")
	for _, c := range cmds {
		fmt.Fprintf(&b, "complete -c texbot -n '__fish_use_subcommand' -a %s -d %s\n", c.Name, fishQuote(c.Desc))
	}
	for _, c := range cmds {
		for _, f := range c.Flags {
			fmt.Fprintf(&b, "complete -c texbot -n '__fish_seen_subcommand_from %s' -l %s", c.Name, f.Long)
			if f.Short != "" {
				fmt.Fprintf(&b, " -s %s", f.Short)
			}
			switch {
			case len(f.Values) > 0:
				fmt.Fprintf(&b, " -x -a %s", fishQuote(strings.Join(f.Values, " ")))
			case f.Files:
				b.WriteString(" -r -F")
			case !f.Bool:
				b.WriteString(" -x")
			}
			fmt.Fprintf(&b, " -d %s\n", fishQuote(f.Desc))
		}
	}
	b.WriteString("complete -c texbot -n '__fish_seen_subcommand_from completion' -a 'bash zsh fish'\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func fishQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

// runCompletion handles the completion command.
func runCompletion(args []string, env *Environment) error {
	if len(args) == 0 {
		printCompletionUsage(env.Stdout)
		return nil
	}
	if err := GenerateCompletion(env.Stdout, Shell(args[0])); err != nil {
		return errors.Join(ErrUsage, err)
	}
	return nil
}

func printCompletionUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: texbot completion <bash|zsh|fish>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Generate a shell completion script.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Bash:  eval \"$(texbot completion bash)\"")
	fmt.Fprintln(w, "  Zsh:   eval \"$(texbot completion zsh)\"")
	fmt.Fprintln(w, "  Fish:  texbot completion fish > ~/.config/fish/completions/texbot.fish")
}
