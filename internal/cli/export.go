package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/spf13/cobra"
)

var exportAll bool

var exportCmd = &cobra.Command{
	Use:   "export <path> [chat]",
	Short: "Export conversations to Markdown files",
	Long: `Export conversations to Markdown files, one file per chat, with the
chat metadata in frontmatter.

Examples:
  chatbot export ./backup "Trip planning"
  chatbot export ./backup --all`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "export every chat")
}

func runExport(cmd *cobra.Command, args []string) error {
	exportPath := args[0]
	ctx := cmd.Context()

	if len(args) < 2 && !exportAll {
		return fmt.Errorf("specify a chat or --all")
	}

	user, err := signIn(ctx)
	if err != nil {
		return err
	}

	chats, err := gqlClient.ListChats(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	if !exportAll {
		chat, err := findChat(chats, args[1])
		if err != nil {
			return err
		}
		chats = []models.Chat{*chat}
	}

	if len(chats) == 0 {
		fmt.Println("No chats to export.")
		return nil
	}

	// Create export directory
	if err := os.MkdirAll(exportPath, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	fmt.Printf("Exporting %d chats...\n", len(chats))

	exported := 0
	for _, chat := range chats {
		msgs, err := gqlClient.ListMessages(ctx, chat.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", chat.Title, err)
			continue
		}

		path := filepath.Join(exportPath, exportFileName(chat))
		if err := os.WriteFile(path, []byte(chatMarkdown(chat, msgs)), 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		exported++
		if verbose {
			fmt.Printf("  %s\n", path)
		}
	}

	fmt.Printf("Exported %d chats to %s\n", exported, exportPath)
	return nil
}

// exportFileName derives a file name from the title, suffixed with the chat ID prefix.
func exportFileName(chat models.Chat) string {
	var b strings.Builder
	for _, r := range strings.ToLower(chat.Title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "chat"
	}
	id := chat.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return slug + "-" + id + ".md"
}

func chatMarkdown(chat models.Chat, msgs []models.Message) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %s\n", chat.ID)
	fmt.Fprintf(&b, "title: %q\n", chat.Title)
	fmt.Fprintf(&b, "created_at: %s\n", chat.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "updated_at: %s\n", chat.UpdatedAt.Format(time.RFC3339))
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n", chat.Title)

	for _, m := range msgs {
		who := "You"
		if m.Role == models.RoleAssistant {
			who = "Assistant"
		}
		fmt.Fprintf(&b, "\n## %s · %s\n\n%s\n", who, m.CreatedAt.Format(time.DateTime), strings.TrimSpace(m.Content))
	}
	return b.String()
}
