package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/labflow/pkg/model"
)

const credentialsFileName = "credentials.json"

// credentials is the session stored by login and signup.
type credentials struct {
	Server    string    `json:"server"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// sessionResponse mirrors the login and signup response.
type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authenticate(cmd, "/api/v1/auth/login", email, password, "")
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	return cmd
}

func newSignupCmd() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and store its session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authenticate(cmd, "/api/v1/auth/signup", email, password, name)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if client.Token == "" {
				return errors.New("not logged in")
			}
			if _, err := client.Post("/api/v1/auth/logout", nil); err != nil {
				logger.Warn("server logout failed", "error", err)
			}
			credPath, err := credentialsPath()
			if err != nil {
				return err
			}
			if err := os.Remove(credPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove credentials: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

// authenticate posts credentials to path and saves the returned session.
func authenticate(cmd *cobra.Command, path, email, password, name string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	var err error
	if email == "" {
		if email, err = prompt(cmd, in, "Email: "); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = prompt(cmd, in, "Password: "); err != nil {
			return err
		}
	}
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}

	resp, err := client.Post(path, map[string]string{
		"email":        email,
		"password":     password,
		"display_name": name,
	})
	if err != nil {
		return err
	}
	sess, err := decodeData[sessionResponse](resp)
	if err != nil {
		return err
	}

	credPath, err := saveCredentials(credentials{
		Server:    client.BaseURL,
		Email:     sess.User.Email,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signed in as %s (%s)\n", sess.User.Email, sess.User.Role)
	fmt.Fprintf(out, "Credentials saved to %s\n", credPath)
	return nil
}

func prompt(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// credentialsPath returns the path to the credentials file (~/.labflow/credentials.json).
func credentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".labflow", credentialsFileName), nil
}

func saveCredentials(creds credentials) (string, error) {
	credPath, err := credentialsPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(credPath), 0o700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(credPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write credentials: %w", err)
	}
	return credPath, nil
}

// loadCredentials reads the stored session, returning the zero value if
// there is none.
func loadCredentials() credentials {
	var creds credentials
	p, err := credentialsPath()
	if err != nil {
		return creds
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return creds
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return credentials{}
	}
	return creds
}
