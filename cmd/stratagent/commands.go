package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahul/stratagent/internal/gateway"
	"github.com/rahul/stratagent/internal/governance"
	"github.com/rahul/stratagent/internal/observability"
	"github.com/rahul/stratagent/internal/store"
	"github.com/rahul/stratagent/pkg/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	return string(b), err
}

func consoleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Run the workflow interactively in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			interactive := observability.IsTerminal(os.Stdin)

			credential := cfg.Credential()
			if credential == "" && interactive {
				credential, err = readSecret("Enter your OpenAI API key: ")
				if err != nil {
					return fmt.Errorf("failed to read API key: %w", err)
				}
			}

			events, err := openEventLog(cfg.App.LogDir)
			if err != nil {
				return err
			}
			defer events.Close()

			rt, err := newRuntime(cfg, credential, events)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if interactive {
				observability.PrintBanner()
			}

			console := gateway.NewConsoleGateway(ctx, os.Stdin, os.Stdout, rt.dispatcher)
			if interactive {
				console.ReadSecret = readSecret
			}
			if credential == "" {
				console.Send(gateway.ConsoleChatID, "Please add your OpenAI API key to continue (/key or OPENAI_API_KEY).")
			}
			return console.Start()
		},
	}
}

func telegramCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Serve the workflow as a Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveChat(cmd.Context(), opts, "telegram", func(ctx context.Context, token string, d *gateway.Dispatcher) (gateway.Messenger, error) {
				return gateway.NewTelegramGateway(ctx, token, d)
			})
		},
	}
}

func discordCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discord",
		Short: "Serve the workflow as a Discord bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveChat(cmd.Context(), opts, "discord", func(ctx context.Context, token string, d *gateway.Dispatcher) (gateway.Messenger, error) {
				return gateway.NewDiscordGateway(ctx, token, d)
			})
		},
	}
}

type messengerFactory func(ctx context.Context, token string, d *gateway.Dispatcher) (gateway.Messenger, error)

// serveChat runs a chat gateway with the live status line until a signal
// arrives or the gateway fails.
func serveChat(parent context.Context, opts *rootOptions, name string, newMessenger messengerFactory) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	gwCfg, ok := cfg.GetGatewayConfig(name)
	if !ok {
		return fmt.Errorf("%s gateway is not enabled or token is missing", name)
	}

	credential := cfg.Credential()
	if credential == "" {
		return fmt.Errorf("no API key: set the provider api_key or %s", config.CredentialEnv)
	}

	observability.InitializeTerminal()
	defer observability.CleanupTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the status line's cursor save/restore sequence.
	termOut := observability.NewTermWriter()
	log.SetOutput(termOut)

	rt, err := newRuntime(cfg, credential, termOut)
	if err != nil {
		return err
	}
	defer rt.Close()

	policy := governance.NewImportPolicy()
	for _, c := range gwCfg.DeniedCommands {
		policy.DenyCommand(c)
	}
	for _, pattern := range gwCfg.DeniedImports {
		if err := policy.DenyTargets(pattern); err != nil {
			return fmt.Errorf("invalid denied_imports pattern %q: %w", pattern, err)
		}
	}
	rt.dispatcher.Policy = policy

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	messenger, err := newMessenger(ctx, gwCfg.Token, rt.dispatcher)
	if err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
			}
		}
	}()

	go func() {
		if err := messenger.Start(); err != nil {
			log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
		}
		stop()
	}()

	<-ctx.Done()
	_ = messenger.Stop()

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] GATEWAY STOPPED. GOODBYE.\033[0m")
	return nil
}

func historyCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List journaled sessions, or the runs of one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			journal, err := store.NewJournal(cfg.Memory.Path)
			if err != nil {
				return err
			}
			defer journal.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				sessions, err := journal.Sessions(limit)
				if err != nil {
					return err
				}
				for _, s := range sessions {
					fmt.Fprintf(out, "%s  %-24s %s\n", s.ID, s.ChatID, s.StartedAt.Local().Format(time.DateTime))
				}
				return nil
			}

			runs, err := journal.Runs(args[0])
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return fmt.Errorf("no runs for session %s", args[0])
			}
			for _, r := range runs {
				fmt.Fprintf(out, "== %s  %s\n", r.CreatedAt.Local().Format(time.DateTime), r.Stage)
				if r.Stage != store.ResetMarker {
					fmt.Fprintf(out, "%s\n\n", r.Output)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to list")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "stratagent", version)
		},
	}
}
