package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/raphaelgruber/chatbot-go/internal/service"
	"github.com/raphaelgruber/chatbot-go/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	askChat      string
	askNew       bool
	askInputFile string
	askQuiet     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send a message to the AI assistant and print the reply",
	Long: `Send a message to a chat and wait for the AI assistant's reply.

The message is stored in the chat like one typed in the UI. Use --new to
start a fresh chat. With no message argument (or "-") the message is read
from stdin or --file.

Examples:
  chatbot ask --chat "Trip planning" "Where should I go in May?"
  chatbot ask --new "Explain goroutines in one paragraph"
  git diff | chatbot ask --new -
  chatbot ask --chat 6f1c2a34-... --file prompt.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askChat, "chat", "c", "", "chat ID or title")
	askCmd.Flags().BoolVar(&askNew, "new", false, "create a new chat for the message")
	askCmd.Flags().StringVarP(&askInputFile, "file", "f", "", "read the message from a file")
	askCmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "no progress display")
}

// cliDraft is the message being sent. There is no input to clear or restore.
type cliDraft struct {
	text string
}

func (d *cliDraft) Text() string    { return d.text }
func (d *cliDraft) Clear()          {}
func (d *cliDraft) Restore(string) {}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	text, err := readMessage(args)
	if err != nil {
		return err
	}
	if askChat == "" && !askNew {
		return fmt.Errorf("specify --chat or --new")
	}

	user, err := signIn(ctx)
	if err != nil {
		return err
	}

	st := store.New()
	svc := newChatService(st)

	var chat *models.Chat
	if askNew {
		chat, err = svc.NewChat(ctx)
		if err != nil {
			return fmt.Errorf("create chat: %w", err)
		}
	} else {
		chat, err = resolveChat(ctx, user.ID, askChat)
		if err != nil {
			return err
		}
		svc.SelectChat(chat.ID)
	}

	draft := &cliDraft{text: text}
	if err := sendWithProgress(ctx, st, func(ctx context.Context) error { return svc.Submit(ctx, draft) }); err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			return fmt.Errorf("message is empty")
		case errors.Is(err, service.ErrMessageTooLong):
			return fmt.Errorf("message has %d characters, the limit is %d",
				models.ContentLength(text), models.MaxMessageLength)
		}
		return fmt.Errorf("send message: %w", err)
	}

	msgs, err := gqlClient.ListMessages(ctx, chat.ID)
	if err != nil {
		return fmt.Errorf("fetch reply: %w", err)
	}
	if reply := lastReply(msgs); reply != nil {
		fmt.Println(reply.Content)
	}
	return nil
}

// sendWithProgress runs send, showing a spinner on an interactive stderr.
func sendWithProgress(ctx context.Context, st *store.Store, send func(context.Context) error) error {
	if askQuiet || verbose || !term.IsTerminal(int(os.Stderr.Fd())) {
		return send(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newProgressModel(st, func() error { return send(ctx) })
	p := tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress display: %w", err)
	}

	m := final.(progressModel)
	if m.quitting && !m.done {
		return context.Canceled
	}
	return m.err
}

func readMessage(args []string) (string, error) {
	switch {
	case askInputFile != "":
		data, err := os.ReadFile(askInputFile)
		if err != nil {
			return "", fmt.Errorf("read message file: %w", err)
		}
		return string(data), nil
	case len(args) == 1 && args[0] != "-":
		return args[0], nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no message given")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// lastReply returns the newest assistant message.
func lastReply(msgs []models.Message) *models.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant {
			return &msgs[i]
		}
	}
	return nil
}
