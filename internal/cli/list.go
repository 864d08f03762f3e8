package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/raphaelgruber/chatbot-go/internal/service"
	"github.com/raphaelgruber/chatbot-go/internal/store"
	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"chats"},
	Short:   "List your chats",
	Long: `List your chats, most recently updated first, with the latest message.

Examples:
  chatbot list
  chatbot list -n 5
  chatbot list -v`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var messagesCmd = &cobra.Command{
	Use:   "messages <chat>",
	Short: "Print the messages of a chat",
	Long: `Print a conversation in chronological order.

Chat can be specified by ID or title.

Examples:
  chatbot messages "New Chat 3:04:05 PM"
  chatbot messages 6f1c2a34-...`,
	Args: cobra.ExactArgs(1),
	RunE: runMessages,
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "max chats (0 = all)")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user, err := signIn(ctx)
	if err != nil {
		return err
	}

	chats, err := gqlClient.ListChats(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}

	if len(chats) == 0 {
		fmt.Println("No chats found.")
		return nil
	}
	if listLimit > 0 && len(chats) > listLimit {
		chats = chats[:listLimit]
	}

	fmt.Printf("Chats (%d):\n\n", len(chats))
	for _, c := range chats {
		fmt.Printf("- %s (%s)\n", c.Title, c.LastActivity().Local().Format(time.DateTime))
		if p := c.Preview(); p != nil {
			fmt.Printf("  %s\n", shorten(p.Content, 72))
		}
		if verbose {
			fmt.Printf("  ID: %s\n", c.ID)
		}
	}

	return nil
}

func runMessages(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user, err := signIn(ctx)
	if err != nil {
		return err
	}

	chat, err := resolveChat(ctx, user.ID, args[0])
	if err != nil {
		return err
	}

	msgs, err := gqlClient.ListMessages(ctx, chat.ID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	fmt.Printf("%s\n%s\n\n", chat.Title, strings.Repeat("═", min(len([]rune(chat.Title)), 60)))
	if len(msgs) == 0 {
		fmt.Println("No messages yet.")
		return nil
	}
	for _, m := range msgs {
		printMessage(m)
	}
	return nil
}

func printMessage(m models.Message) {
	who := "You"
	if m.Role == models.RoleAssistant {
		who = "Assistant"
	}
	fmt.Printf("[%s] %s:\n%s\n\n", m.CreatedAt.Local().Format(time.TimeOnly), who, m.Content)
}

// resolveChat finds a chat by ID, falling back to a case-insensitive title match.
func resolveChat(ctx context.Context, userID, ref string) (*models.Chat, error) {
	chats, err := gqlClient.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return findChat(chats, ref)
}

func findChat(chats []models.Chat, ref string) (*models.Chat, error) {
	for i := range chats {
		if chats[i].ID == ref {
			return &chats[i], nil
		}
	}
	var match *models.Chat
	for i := range chats {
		if strings.EqualFold(chats[i].Title, ref) {
			if match != nil {
				return nil, fmt.Errorf("chat title %q is ambiguous, use the ID", ref)
			}
			match = &chats[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("chat not found: %s", ref)
	}
	return match, nil
}

// newChatService builds a chat service that reports notices on stderr.
func newChatService(st *store.Store) *service.ChatService {
	notify := service.NotifierFunc(func(n service.Notice) {
		if n.Level == service.LevelError {
			fmt.Fprintf(os.Stderr, "✗ %s: %s\n", n.Title, n.Text)
			return
		}
		fmt.Fprintf(os.Stderr, "✓ %s\n", n.Text)
	})
	return service.NewChatService(st, gqlClient, authClient, notify, logger)
}

func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
