package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/lewisedginton/ron/internal/assistant"
	"github.com/spf13/cobra"
)

// Responder answers one utterance.
type Responder interface {
	Respond(ctx context.Context, req assistant.Request) assistant.Reply
}

// lineReader is the part of readline the chat loop uses.
type lineReader interface {
	Readline() (string, error)
}

func newChatCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Conversación interactiva con Ron",
		Long: `Abre una sesión interactiva. La sesión termina cuando dices "hasta luego"
o con Ctrl+D.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			srv, cfg, _, err := o.newServer(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "Tú: ",
				HistoryFile:     historyFile(),
				InterruptPrompt: "^C",
				EOFPrompt:       "hasta luego",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize readline: %w", err)
			}
			defer rl.Close()

			return chatLoop(ctx, rl, cmd.OutOrStdout(), srv.Dispatcher(), cfg.Assistant.Name)
		},
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "ron")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

// chatLoop reads utterances until the assistant says goodbye, input ends or
// ctx is cancelled.
func chatLoop(ctx context.Context, in lineReader, out io.Writer, r Responder, name string) error {
	fmt.Fprintf(out, "%s: Hola, soy %s. ¿En qué te puedo ayudar?\n", name, name)
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := in.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		reply := r.Respond(ctx, assistant.Request{Text: line})
		if reply.Text != "" {
			fmt.Fprintf(out, "%s: %s\n", name, reply.Text)
		}
		if reply.Terminate {
			return nil
		}
	}
}
