package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/kitesession/internal/domain/entities"
	"github.com/devilmonastery/kitesession/internal/domain/services"
)

// formatDuration formats a duration in a human-friendly way (e.g., "2 days, 3 hours, 45 minutes")
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 && seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Session commands",
		Long:  `Acquire, inspect and end the Kite Connect session`,
	}

	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthLogoutCommand())
	cmd.AddCommand(newAuthStatusCommand())
	cmd.AddCommand(newAuthTokenCommand())

	return cmd
}

// acquire prompts for missing secrets and runs session acquisition
func acquire(ctx context.Context, s *session) (*entities.Session, error) {
	if err := promptMissingSecrets(&s.creds); err != nil {
		return nil, err
	}

	sess, err := s.service.Acquire(ctx, s.creds)
	if err != nil {
		if fields := services.MissingCredentialFields(err); len(fields) > 0 {
			return nil, fmt.Errorf("%w\nSet them in the config file or the KITE_* environment variables", err)
		}
		return nil, err
	}
	return sess, nil
}

func newAuthLoginCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain a valid session, logging in if needed",
		Long: `Reuse the cached access token if Kite still accepts it, otherwise log in
through a headless browser and cache the new token.

Use --force to discard the cached token and always log in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			s, err := newSession(cc)
			if err != nil {
				return err
			}

			if force {
				if err := s.store.Clear(cmd.Context()); err != nil {
					return fmt.Errorf("failed to discard cached token: %w", err)
				}
			}

			sess, err := acquire(cmd.Context(), s)
			if err != nil {
				return err
			}

			name := s.creds.UserID
			if sess.Profile != nil && sess.Profile.UserName != "" {
				name = sess.Profile.UserName
			}

			switch sess.Source {
			case entities.SourceCached:
				fmt.Printf("✓ Cached session for %s is valid\n", name)
			default:
				fmt.Printf("✓ Logged in as %s\n", name)
				if sess.User != nil && !sess.User.LoginTime.IsZero() {
					fmt.Printf("Login time: %s (%s ago)\n",
						sess.User.LoginTime.Local().Format("2006-01-02 15:04:05 MST"),
						formatDuration(time.Since(sess.User.LoginTime)))
				}
			}
			fmt.Printf("Token file: %s\n", s.store.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Discard the cached token and log in again")

	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on Kite and delete the cached token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			s, err := newSession(cc)
			if err != nil {
				return err
			}

			token, ok := s.store.Load(cmd.Context())
			if !ok {
				fmt.Println("Not logged in")
				return nil
			}

			if !s.service.Logout(cmd.Context(), &entities.Session{AccessToken: token}) {
				fmt.Println("⚠  Kite did not confirm the logout; cached token removed")
				return nil
			}

			fmt.Println("✓ Successfully logged out")
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the cached token is still accepted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			s, err := newSession(cc)
			if err != nil {
				return err
			}

			status, profile := s.service.Status(cmd.Context())
			switch status {
			case entities.TokenAbsent:
				fmt.Println("Not logged in")
			case entities.TokenInvalid:
				fmt.Println("⚠  Cached token was rejected - run 'kitesession auth login'")
			case entities.TokenValid:
				if profile != nil {
					fmt.Printf("Logged in as: %s\n", profile.UserName)
					fmt.Printf("User ID: %s\n", profile.UserID)
					fmt.Printf("Broker: %s\n", profile.Broker)
					fmt.Printf("Exchanges: %s\n", strings.Join(profile.Exchanges, ", "))
				}
				fmt.Println("✓  Token is valid")
			}
			fmt.Printf("Token file: %s\n", s.store.Path())
			return nil
		},
	}
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, logging in if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			s, err := newSession(cc)
			if err != nil {
				return err
			}

			sess, err := acquire(cmd.Context(), s)
			if err != nil {
				return err
			}

			fmt.Println(sess.AccessToken)
			return nil
		},
	}
}
