package console

import (
	"fmt"
	"io"

	"github.com/chzyer/readline"
)

// Terminal is a LineReader backed by readline.
type Terminal struct {
	rl *readline.Instance
}

// NewTerminal opens the terminal for line editing.
func NewTerminal() (*Terminal, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "luke> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("nodes"),
			readline.PcItem("link", kindItems(kindItems()...)...),
			readline.PcItem("unlink", kindItems()...),
			readline.PcItem("reboot", kindItems()...),
			readline.PcItem("reboot-all"),
			readline.PcItem("hide", kindItems()...),
			readline.PcItem("refresh", kindItems()...),
			readline.PcItem("history"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Terminal{rl: rl}, nil
}

func kindItems(next ...readline.PrefixCompleterInterface) []readline.PrefixCompleterInterface {
	return []readline.PrefixCompleterInterface{
		readline.PcItem("controller", next...),
		readline.PcItem("display", next...),
		readline.PcItem("dino", next...),
	}
}

// ReadLine implements LineReader.
func (t *Terminal) ReadLine(prompt string) (string, error) {
	t.rl.SetPrompt(prompt)
	return t.rl.Readline()
}

// Stdout returns a writer that does not garble the prompt. Log output
// should go here while the console runs.
func (t *Terminal) Stdout() io.Writer {
	return t.rl.Stdout()
}

// Close releases the terminal.
func (t *Terminal) Close() error {
	return t.rl.Close()
}
