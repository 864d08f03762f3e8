package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/chatbot-go/internal/store"
	"github.com/spf13/cobra"
)

var (
	deleteForce bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <chat>",
	Short: "Delete a chat and its messages",
	Long: `Delete a chat. Its messages are removed with it.
Requires confirmation unless --force is used.

Chat can be specified by ID or title.

Examples:
  chatbot delete "Trip planning"
  chatbot delete 6f1c2a34-... --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user, err := signIn(ctx)
	if err != nil {
		return err
	}

	chat, err := resolveChat(ctx, user.ID, args[0])
	if err != nil {
		return err
	}

	// Confirm deletion
	if !deleteForce {
		fmt.Printf("About to delete: %s (%s)\n", chat.Title, chat.ID)
		fmt.Print("\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := newChatService(store.New()).DeleteChat(ctx, chat.ID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}
