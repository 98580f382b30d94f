package inputs

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

// Prompter supplies a value for one declared input that the caller did
// not provide.
type Prompter interface {
	Prompt(in schema.InputDef) (string, error)
}

// ReadlinePrompter asks for missing inputs interactively on the terminal.
type ReadlinePrompter struct{}

// Prompt reads one value, re-asking while a required input stays empty.
// Ctrl-C and EOF abort the run rather than submitting an empty value.
func (ReadlinePrompter) Prompt(in schema.InputDef) (string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptLabel(in),
		InterruptPrompt: "^C",
	})
	if err != nil {
		return "", fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return "", fmt.Errorf("input aborted")
			}
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" && in.Required {
			continue
		}
		return line, nil
	}
}

func promptLabel(in schema.InputDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s", in.Name, in.Type)
	if in.Format != "" {
		fmt.Fprintf(&b, ", e.g. %s", in.Format)
	}
	b.WriteString("): ")
	return b.String()
}
