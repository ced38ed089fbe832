package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/agentcal/internal/config"
	"github.com/teemow/agentcal/internal/logging"
)

// chatUser is the identity used for every message typed into chat.
const chatUser = "local"

func newChatCmd() *cobra.Command {
	var (
		configPath  string
		memoryStore bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		Long: `Read messages from stdin and print the assistant's replies.

Use --memory to try the assistant against an empty in-memory calendar
instead of Google Calendar. Type "exit" or press Ctrl-D to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if memoryStore {
				cfg.Calendar.Backend = config.CalendarMemory
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			return runChat(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().BoolVar(&memoryStore, "memory", false, "Use an in-memory calendar")

	return cmd
}

func runChat(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, logging.FormatText, level)

	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "exit" || line == "quit":
			return nil
		default:
			resp := a.assistant.Handle(ctx, "cli", chatUser, line)
			fmt.Fprintln(out, resp.Text)
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
