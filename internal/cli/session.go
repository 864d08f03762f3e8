package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/chatbot-go/internal/auth"
	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var signUp bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check credentials against the auth service",
	Long: `Sign in (or sign up with --sign-up) and print the account details.

Credentials come from CHATBOT_EMAIL / CHATBOT_PASSWORD or the config file.
Missing values are prompted for when running in a terminal.

Examples:
  chatbot login
  CHATBOT_EMAIL=ada@example.com chatbot login
  chatbot login --sign-up`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&signUp, "sign-up", false, "create the account instead of signing in")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	email, password, err := credentials()
	if err != nil {
		return err
	}

	var user *models.User
	if signUp {
		user, err = authClient.SignUp(ctx, email, password)
	} else {
		user, err = authClient.SignIn(ctx, email, password)
	}
	if err != nil {
		return describeAuthError(err)
	}

	fmt.Printf("Signed in as %s\n", user.Email)
	fmt.Printf("  User ID: %s\n", user.ID)
	if user.DisplayName != "" {
		fmt.Printf("  Name:    %s\n", user.DisplayName)
	}
	return nil
}

// signIn starts a session for non-interactive commands.
func signIn(ctx context.Context) (*models.User, error) {
	email, password, err := credentials()
	if err != nil {
		return nil, err
	}
	user, err := authClient.SignIn(ctx, email, password)
	if err != nil {
		return nil, describeAuthError(err)
	}
	logger.Debug("signed in", "user_id", user.ID)
	return user, nil
}

// credentials returns the configured email and password, prompting for what is missing.
func credentials() (email, password string, err error) {
	email, password = cfg.Email, cfg.Password
	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	if email == "" && interactive {
		fmt.Fprint(os.Stderr, "Email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	if password == "" && interactive {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}

	if strings.TrimSpace(email) == "" || password == "" {
		return "", "", fmt.Errorf("%s (set CHATBOT_EMAIL and CHATBOT_PASSWORD)", auth.MissingCredentialsMessage)
	}
	return email, password, nil
}

func describeAuthError(err error) error {
	var apiErr *auth.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return fmt.Errorf("sign in failed: %s", apiErr.Message)
	}
	return fmt.Errorf("sign in failed: %w", err)
}
