package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/doubaotts/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple credentials and voice defaults,
similar to kubectl's context management.

Configuration is stored in ~/.config/doubaotts/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

The bidirectional TTS API requires:
  - App ID: Your application ID (X-Api-App-Key)
  - Access Key: Your access token (X-Api-Access-Key)

Example:
  doubaotts config add-context prod --app-id APP_ID --access-key TOKEN
  doubaotts config add-context dev --app-id APP_ID --access-key TOKEN --speaker zh_female_wanwanxiaohe_moon_bigtts --sample-rate 16000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		flags := cmd.Flags()

		ctx := &cli.Context{}
		for flag, dst := range map[string]*string{
			"app-id":      &ctx.AppID,
			"access-key":  &ctx.AccessKey,
			"resource-id": &ctx.ResourceID,
			"url":         &ctx.URL,
			"user-id":     &ctx.UserID,
			"speaker":     &ctx.Speaker,
			"format":      &ctx.Format,
		} {
			v, err := flags.GetString(flag)
			if err != nil {
				return fmt.Errorf("failed to read '%s' flag: %w", flag, err)
			}
			*dst = v
		}

		var err error
		if ctx.SampleRate, err = flags.GetInt("sample-rate"); err != nil {
			return fmt.Errorf("failed to read 'sample-rate' flag: %w", err)
		}
		if ctx.HandshakeTimeout, err = flags.GetInt("handshake-timeout"); err != nil {
			return fmt.Errorf("failed to read 'handshake-timeout' flag: %w", err)
		}

		ctx.Name = name
		if err := ctx.Validate(); err != nil {
			return err
		}

		cfg := getConfig()
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			if err := cfg.UseContext(name); err != nil {
				return err
			}
		}

		cli.PrintSuccess("Context %q added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.UseContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Switched to context %q", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}

		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if len(cfg.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tAPP_ID\tSPEAKER")

		for _, name := range cfg.ListContexts() {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			speaker := ctx.Speaker
			if speaker == "" {
				speaker = "(none)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", current, name, ctx.AppID, speaker)
		}

		return w.Flush()
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view [name]",
	Short: "Show a context with secrets masked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := contextName
		if len(args) == 1 {
			name = args[0]
		}
		ctx, err := getConfig().ResolveContext(name)
		if err != nil {
			return err
		}

		masked := *ctx
		masked.AccessKey = cli.MaskAPIKey(ctx.AccessKey)
		return outputResult(&masked)
	},
}

func init() {
	configAddContextCmd.Flags().String("app-id", "", "application ID (required)")
	configAddContextCmd.Flags().String("access-key", "", "access token (required)")
	configAddContextCmd.Flags().String("resource-id", "", "resource ID (default volc.service_type.10029)")
	configAddContextCmd.Flags().String("url", "", "endpoint URL override")
	configAddContextCmd.Flags().String("user-id", "", "uid sent with requests")
	configAddContextCmd.Flags().String("speaker", "", "default voice")
	configAddContextCmd.Flags().String("format", "", "default audio format: pcm, mp3, ogg_opus")
	configAddContextCmd.Flags().Int("sample-rate", 0, "default sample rate in Hz")
	configAddContextCmd.Flags().Int("handshake-timeout", 0, "handshake timeout in seconds")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
