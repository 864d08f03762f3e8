package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [chat]",
	Short: "Follow live updates",
	Long: `Follow live updates over the GraphQL subscription until interrupted.

Without a chat, prints the chat list whenever it changes. With a chat (ID or
title), prints messages as they arrive.

Examples:
  chatbot watch
  chatbot watch "Trip planning"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user, err := signIn(ctx)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		err = watchChats(ctx, user.ID)
	} else {
		var chat *models.Chat
		chat, err = resolveChat(ctx, user.ID, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Watching %s (Ctrl+C to stop)\n\n", chat.Title)
		err = watchMessages(ctx, chat.ID)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func watchChats(ctx context.Context, userID string) error {
	return gqlClient.SubscribeChats(ctx, userID, func(chats []models.Chat) {
		fmt.Printf("── %s: %d chats\n", time.Now().Format(time.TimeOnly), len(chats))
		for _, c := range chats {
			line := "- " + c.Title
			if p := c.Preview(); p != nil {
				line += ": " + shorten(p.Content, 60)
			}
			fmt.Println(line)
		}
		fmt.Println()
	})
}

// watchMessages prints each message once, in arrival order.
func watchMessages(ctx context.Context, chatID string) error {
	seen := make(map[string]bool)
	return gqlClient.SubscribeMessages(ctx, chatID, func(msgs []models.Message) {
		for _, m := range msgs {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			printMessage(m)
		}
	})
}
