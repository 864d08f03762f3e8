// Package cli provides the command-line interface for the chat client.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/chatbot-go/internal/auth"
	"github.com/raphaelgruber/chatbot-go/internal/client"
	"github.com/raphaelgruber/chatbot-go/internal/config"
	"github.com/raphaelgruber/chatbot-go/internal/metrics"
	"github.com/raphaelgruber/chatbot-go/internal/service"
	"github.com/raphaelgruber/chatbot-go/internal/store"
	"github.com/raphaelgruber/chatbot-go/internal/tui"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	showStats bool

	cfg     config.Config
	logger  *slog.Logger
	closeFn func() error

	collector  *metrics.Collector
	authClient *auth.Client
	gqlClient  *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "Terminal client for the AI chat app",
	Long: `Chatbot is a terminal client for the Nhost/Hasura AI chat app.

Without a subcommand it opens the interactive chat UI: sign in, pick or
create a conversation, and talk to the AI assistant. Replies arrive live
over GraphQL subscriptions.

The subcommands script the same backend from the shell.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runTUI,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if showStats {
			printStats(collector.Snapshot())
		}
		if closeFn != nil {
			if err := closeFn(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// setup loads config and builds the backend clients shared by all commands.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	cfg = config.Load()
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}

	// the TUI owns the terminal, so it only logs to the file
	if !cmd.HasParent() {
		logger, closeFn = config.SetupFileLogger(cfg.LogFile, level)
	} else {
		logger, closeFn = config.SetupLogger(cfg.LogFile, level)
	}
	slog.SetDefault(logger)

	collector = metrics.NewCollector()
	authClient = auth.New(cfg.AuthURL,
		auth.WithLogger(logger),
		auth.WithMetrics(collector),
		auth.WithTimeout(cfg.ClientTimeout),
	)

	opts := []client.Option{
		client.WithWebSocketEndpoint(cfg.GraphQLWSURL),
		client.WithTokenSource(authClient),
		client.WithTimeout(cfg.ClientTimeout),
		client.WithLogger(logger),
		client.WithMetrics(collector),
	}
	if cfg.AdminSecret != "" {
		opts = append(opts, client.WithHeader("x-hasura-admin-secret", cfg.AdminSecret))
	}
	gqlClient = client.New(cfg.GraphQLURL, opts...)

	logger.Debug("client configured",
		"graphql_url", cfg.GraphQLURL,
		"auth_url", cfg.AuthURL,
		"timeout", cfg.ClientTimeout,
	)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	st := store.New()
	notices := tui.NewNotifier()
	chats := service.NewChatService(st, gqlClient, authClient, notices, logger)
	feed := service.NewFeed(st, gqlClient, logger)

	return tui.Run(cmd.Context(), tui.Deps{
		Auth:     authClient,
		Store:    st,
		Chats:    chats,
		Feed:     feed,
		Notices:  notices,
		Metrics:  collector,
		Logger:   logger,
		Email:    cfg.Email,
		Password: cfg.Password,
	})
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print request statistics on exit")

	// Add subcommands
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
}
