package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/doubaotts/pkg/cli"
)

const appName = "doubaotts"

var (
	// Global flags
	cfgFile     string
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "doubaotts",
	Short: "Doubao bidirectional streaming TTS CLI",
	Long: `doubaotts - a command line client for the Doubao (火山引擎豆包) bidirectional
streaming TTS API.

Text is sent incrementally over one WebSocket session while audio streams back.

Configuration is stored in ~/.config/doubaotts/ and supports multiple contexts,
similar to kubectl's context management.

Examples:
  # Set up a new context
  doubaotts config add-context prod --app-id APP_ID --access-key TOKEN --speaker zh_female_wanwanxiaohe_moon_bigtts

  # Synthesize each argument as one submission
  doubaotts -c prod speak "你好，" "世界！" -o hello.pcm

  # Stream lines from stdin
  cat story.txt | doubaotts speak --format mp3 -o story.mp3
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is ~/.config/doubaotts/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(speakCmd)
}

func initConfig() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'doubaotts config use-context'")
		}
		return nil, err
	}

	return ctx, nil
}

// outputResult prints result as YAML, or JSON with --json
func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{Format: format})
}
