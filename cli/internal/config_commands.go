package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration and contexts",
		Long:  `Manage CLI configuration including account contexts, similar to kubectl contexts.`,
	}

	cmd.AddCommand(newCurrentContextCommand())
	cmd.AddCommand(newUseContextCommand())
	cmd.AddCommand(newListContextsCommand())
	cmd.AddCommand(newSetContextCommand())
	cmd.AddCommand(newDeleteContextCommand())
	cmd.AddCommand(newConfigViewCommand())

	return cmd
}

// current-context command
func newCurrentContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Display the current context",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(getCliContext(cmd).Config.CurrentContext)
			return nil
		},
	}
}

// use-context command
func newUseContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use-context CONTEXT_NAME",
		Short: "Switch to a different context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]
			config := getCliContext(cmd).Config

			if err := config.SetCurrentContext(contextName); err != nil {
				return err
			}

			if err := SaveConfig(config); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Printf("Switched to context %q\n", contextName)
			return nil
		},
	}
}

// get-contexts command
func newListContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "get-contexts",
		Aliases: []string{"list-contexts"},
		Short:   "List all available contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := getCliContext(cmd).Config

			if len(config.Contexts) == 0 {
				fmt.Println("No contexts configured")
				return nil
			}

			names := make([]string, 0, len(config.Contexts))
			for name := range config.Contexts {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "CURRENT\tNAME\tUSER\tAPI KEY\tTOKEN FILE")

			for _, name := range names {
				ctx := config.Contexts[name]
				current := " "
				if name == config.CurrentContext {
					current = "*"
				}
				tokenFile := ctx.TokenFile
				if tokenFile == "" {
					tokenFile = "(working dir)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					current,
					name,
					ctx.Kite.UserID,
					ctx.Kite.APIKey,
					tokenFile,
				)
			}
			w.Flush()

			return nil
		},
	}
}

// set-context command
func newSetContextCommand() *cobra.Command {
	var (
		next     Context
		headless bool
	)

	cmd := &cobra.Command{
		Use:     "set-context CONTEXT_NAME",
		Aliases: []string{"add-context"},
		Short:   "Add a context or update fields of an existing one",
		Long: `Add a context or update fields of an existing one. Only the flags given
are changed. Values may reference environment variables as ${VAR}, which
keeps secrets out of the config file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]
			config := getCliContext(cmd).Config

			ctx, ok := config.Contexts[contextName]
			if !ok {
				ctx = &Context{}
				ctx.Rendering.Theme = "auto"
			}

			flags := cmd.Flags()
			set := func(flag string, dst *string, v string) {
				if flags.Changed(flag) {
					*dst = v
				}
			}
			set("user-id", &ctx.Kite.UserID, next.Kite.UserID)
			set("password", &ctx.Kite.Password, next.Kite.Password)
			set("second-factor", &ctx.Kite.SecondFactor, next.Kite.SecondFactor)
			set("second-factor-kind", &ctx.Kite.SecondFactorKind, next.Kite.SecondFactorKind)
			set("api-key", &ctx.Kite.APIKey, next.Kite.APIKey)
			set("api-secret", &ctx.Kite.APISecret, next.Kite.APISecret)
			set("redirect-url", &ctx.Kite.RedirectURL, next.Kite.RedirectURL)
			set("token-file", &ctx.TokenFile, next.TokenFile)
			set("metrics-file", &ctx.MetricsFile, next.MetricsFile)
			set("theme", &ctx.Rendering.Theme, next.Rendering.Theme)
			set("chrome", &ctx.Browser.ExecPath, next.Browser.ExecPath)
			if flags.Changed("headless") {
				ctx.Browser.Headless = &headless
			}

			config.AddContext(contextName, ctx)

			// If this is the first context, make it current
			if len(config.Contexts) == 1 {
				config.CurrentContext = contextName
			}

			if err := SaveConfig(config); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Printf("Context %q added/updated\n", contextName)
			return nil
		},
	}

	cmd.Flags().StringVar(&next.Kite.UserID, "user-id", "", "Kite user id")
	cmd.Flags().StringVar(&next.Kite.Password, "password", "", "Password, or ${VAR}")
	cmd.Flags().StringVar(&next.Kite.SecondFactor, "second-factor", "", "PIN or TOTP seed, or ${VAR}")
	cmd.Flags().StringVar(&next.Kite.SecondFactorKind, "second-factor-kind", "", "pin or totp")
	cmd.Flags().StringVar(&next.Kite.APIKey, "api-key", "", "Kite Connect API key")
	cmd.Flags().StringVar(&next.Kite.APISecret, "api-secret", "", "Kite Connect API secret, or ${VAR}")
	cmd.Flags().StringVar(&next.Kite.RedirectURL, "redirect-url", "", "Redirect URL registered for the app")
	cmd.Flags().StringVar(&next.TokenFile, "token-file", "", "Access token file")
	cmd.Flags().StringVar(&next.MetricsFile, "metrics-file", "", "Prometheus textfile to write after each run")
	cmd.Flags().StringVar(&next.Rendering.Theme, "theme", "auto", "Rendering theme")
	cmd.Flags().StringVar(&next.Browser.ExecPath, "chrome", "", "Chrome executable")
	cmd.Flags().BoolVar(&headless, "headless", true, "Run the login browser headless")

	return cmd
}

// delete-context command
func newDeleteContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context CONTEXT_NAME",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]
			config := getCliContext(cmd).Config

			if err := config.DeleteContext(contextName); err != nil {
				return err
			}

			if err := SaveConfig(config); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Printf("Context %q deleted\n", contextName)
			return nil
		},
	}
}

// view command shows the current context with literal secrets masked
func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "view",
		Aliases: []string{"show"},
		Short:   "Show current context configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := getCliContext(cmd).Config

			ctx, err := config.GetCurrentContext()
			if err != nil {
				return fmt.Errorf("failed to get current context: %w", err)
			}

			masked := *ctx
			masked.Kite.Password = maskSecret(ctx.Kite.Password)
			masked.Kite.SecondFactor = maskSecret(ctx.Kite.SecondFactor)
			masked.Kite.APISecret = maskSecret(ctx.Kite.APISecret)

			data, err := yaml.Marshal(&masked)
			if err != nil {
				return fmt.Errorf("failed to marshal context: %w", err)
			}

			configPath, _ := GetConfigPath()
			fmt.Printf("# context: %s\n# file: %s\n", config.CurrentContext, configPath)
			fmt.Print(string(data))
			return nil
		},
	}
}

// maskSecret hides literal secrets. Environment references are shown as-is.
func maskSecret(v string) string {
	if v == "" || (strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}")) {
		return v
	}
	return "****"
}
