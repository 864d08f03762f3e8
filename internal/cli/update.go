package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/chatbot-go/internal/service"
	"github.com/raphaelgruber/chatbot-go/internal/store"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "rename <chat> <title>",
	Short: "Rename a chat",
	Long: `Change a chat's title.

Chat can be specified by ID or title.

Examples:
  chatbot rename "New Chat 3:04:05 PM" "Trip planning"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user, err := signIn(ctx)
	if err != nil {
		return err
	}

	chat, err := resolveChat(ctx, user.ID, args[0])
	if err != nil {
		return err
	}

	title := strings.Join(args[1:], " ")
	if err := newChatService(store.New()).RenameChat(ctx, chat.ID, title); err != nil {
		if errors.Is(err, service.ErrEmptyTitle) {
			return fmt.Errorf("title must not be empty")
		}
		return fmt.Errorf("rename chat: %w", err)
	}
	return nil
}
