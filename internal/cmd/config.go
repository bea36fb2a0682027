package cmd

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/image2video/internal/config"
	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or validate image2video configuration",
	Long: `View or validate image2video configuration.

Without arguments, displays the current configuration with credentials masked.
Use subcommands to validate settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/image2video/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Unmarshal()
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults and environment)")
	}

	b, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(b)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Unmarshal()
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	errs := cfg.Validate()
	if len(errs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
		return nil
	}

	for _, e := range errs {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", e.Error())
	}
	return errors.NewConfigError(fmt.Sprintf("%d configuration error(s)", len(errs)), config.ValidationErrors(errs))
}

const configTemplate = `# image2video configuration
# Every key can be overridden with an IMAGE2VIDEO_* environment variable,
# e.g. IMAGE2VIDEO_SECRET or IMAGE2VIDEO_SESSION_TIMEOUT_SECONDS.

# Video task submission endpoint (required)
api_url: ""
# Image host API key (required)
image_host_api_key: ""
# Access key id and secret used to sign bearer tokens (required)
key_id: ""
secret: ""

image_host:
  endpoint: https://api.imgbb.com/1/upload

# Settings sent with every video task
video:
  model_name: kling-v1-6
  mode: pro
  duration: "10"
  # Between 0 and 1
  cfg_scale: 0.8

session:
  # Seconds a user has to send the next message
  timeout_seconds: 180
  # Text messages starting with this begin a conversation
  trigger_prefix: 动起来
  # Options: memory, redis
  store: memory
  redis_addr: localhost:6379
  redis_prefix: "image2video:session:"

attachment:
  # Where the chat host downloads image attachments
  dir: tmp

http:
  timeout_seconds: 30
  # Total tries per request, the first included
  max_attempts: 3
  retry_wait_min_ms: 500
  retry_wait_max_ms: 4000

server:
  addr: ":8080"

logging:
  # Options: debug, info, warn, error
  level: info
  # Empty logs to stderr
  file: ""
  # Rotate the file at this size; 0 disables rotation
  max_size_mb: 10
  max_backups: 3
  compress: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists at %s\nUse --force to overwrite it", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Credentials end up in this file.
	if err := os.WriteFile(configFile, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Fill in the credentials, then run 'image2video config validate'.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_SESSION_TIMEOUT_SECONDS)\n", config.EnvPrefix, config.EnvPrefix)

	return nil
}
