package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/chatbot-go/internal/store"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Create a new chat",
	Long: `Create a new chat. Without a title it is named after the current time,
like the "New Chat" button in the UI.

Examples:
  chatbot new
  chatbot new "Trip planning"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := signIn(ctx); err != nil {
		return err
	}

	chat, err := newChatService(store.New()).NewChat(ctx)
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}

	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		renamed, err := gqlClient.UpdateChatTitle(ctx, chat.ID, strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("set title: %w", err)
		}
		chat = renamed
	}

	fmt.Printf("Created: %s\n", chat.Title)
	fmt.Printf("  ID: %s\n", chat.ID)
	return nil
}
