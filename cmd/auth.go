package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/tdo/internal/auth"
	"github.com/marcus/tdo/internal/db"
	"github.com/marcus/tdo/internal/output"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Manage the sign-in session",
	GroupID: "sync",
}

// promptCredentials asks for whatever was not given on the command line.
// On a terminal it uses a form with a masked password field; otherwise it
// reads one value per line from stdin.
func promptCredentials(email, password string) (string, string, error) {
	if email != "" && password != "" {
		return email, password, nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&email).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("email required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password),
		))
		if err := form.Run(); err != nil {
			return "", "", err
		}
		return strings.TrimSpace(email), password, nil
	}

	r := bufio.NewReader(os.Stdin)
	readLine := func() (string, error) {
		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	var err error
	if email == "" {
		if email, err = readLine(); err != nil {
			return "", "", fmt.Errorf("read email: %w", err)
		}
	}
	if password == "" {
		if password, err = readLine(); err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
	}
	return strings.TrimSpace(email), password, nil
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, backend, err := newConnector(nil)
		if err != nil {
			return err
		}
		defer backend.Close()

		email, _ := cmd.Flags().GetString("email")
		password := os.Getenv("TDO_PASSWORD")
		if email, password, err = promptCredentials(email, password); err != nil {
			return err
		}
		if email == "" {
			return fmt.Errorf("email required")
		}

		conn.Events().OnSessionStarted(func(s auth.Session) error {
			output.Success("Logged in as %s", s.User.Email)
			return nil
		})
		conn.Events().OnSessionStarted(func(s auth.Session) error {
			database, err := openDB()
			if errors.Is(err, db.ErrNotInitialized) {
				return nil
			}
			if err != nil {
				return err
			}
			defer database.Close()
			return claimFor(cmd.Context(), database, s.User.ID)
		})
		return conn.Login(cmd.Context(), email, password)
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, backend, err := newConnector(nil)
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := conn.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, backend, err := newConnector(nil)
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := conn.Init(cmd.Context()); err != nil {
			return err
		}
		sess, err := conn.Session()
		if err != nil {
			return err
		}
		if sess == nil {
			fmt.Println("Not logged in. Run 'tdo auth login'.")
			return nil
		}

		fmt.Printf("Email:   %s\n", sess.User.Email)
		fmt.Printf("User:    %s\n", sess.User.ID)
		fmt.Printf("Server:  %s\n", cfg.SupabaseURL)
		if cfg.PowerSyncURL != "" {
			fmt.Printf("Sync:    %s\n", cfg.PowerSyncURL)
		}
		if sess.ExpiresAt != nil {
			fmt.Printf("Expires: %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))
		}
		return nil
	},
}

func init() {
	authLoginCmd.Flags().String("email", "", "account email (password is read from TDO_PASSWORD or prompted)")
	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
