package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KilimcininKorOglu/rawhdr/internal/config"
	"github.com/KilimcininKorOglu/rawhdr/internal/logging"
	"github.com/KilimcininKorOglu/rawhdr/internal/output"
	"github.com/spf13/cobra"
)

var (
	// Persistent flags
	cfgFile      string
	logLevel     string
	logFile      string
	noColor      bool
	outputFormat string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rawhdr",
	Short: "IPv4/ICMP header toolkit",
	Long: `rawhdr builds, sends and dissects raw IPv4 and ICMP headers.

It encodes Echo and RFC 792 Timestamp requests with correct checksums,
sends bounded request plans over raw sockets, and classifies every frame
of a pcap or pcapng capture by protocol layer.

Examples:
  rawhdr analyze capture.pcap          Dissect a capture
  rawhdr analyze -o table dump.pcapng  Detailed table output
  rawhdr ping -c 4 192.168.1.1         Send four echo requests
  rawhdr ping --raw --ttl 8 host       Build the IPv4 header locally
  rawhdr timestamp gw                  Query a host clock
  rawhdr encode --dst 10.0.0.2         Hex dump an echo request
  rawhdr config --init                 Create default config file`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.config/rawhdr/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also log to this file, with rotation")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, table, json, csv, html")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(timestampCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

// setup loads configuration and configures logging before any subcommand.
func setup(cmd *cobra.Command, args []string) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}
	return setupLogging(cmd)
}

// teardown closes the log file.
func teardown(cmd *cobra.Command, args []string) error {
	return logging.Close()
}

// loadConfig loads configuration from file and applies defaults.
func loadConfig(cmd *cobra.Command) error {
	var (
		path string
		err  error
	)

	if cfgFile != "" {
		path = cfgFile
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	applyConfigDefaults(cmd)
	if path != "" {
		logging.Debugf("loaded config from %s", path)
	}
	return nil
}

// applyConfigDefaults applies config file values for unset persistent flags.
func applyConfigDefaults(cmd *cobra.Command) {
	flags := cmd.Flags()
	if !flags.Changed("no-color") && cfg.Defaults.NoColor {
		noColor = true
	}
	if !flags.Changed("output") {
		outputFormat = cfg.Defaults.Format
	}
	if !flags.Changed("log-level") {
		logLevel = cfg.Logging.Level
	}
	if !flags.Changed("log-file") {
		logFile = cfg.Logging.File
	}
}

// setupLogging configures the process logger from flags and config.
func setupLogging(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logging.SetLevel(level)

	if noColor {
		logging.DisableColors()
	}

	if logFile == "" {
		return nil
	}
	dir := cfg.Logging.Dir
	if dir == "" {
		dir = "."
	}
	if err := logging.EnableFileLogging(dir, logFile, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups, cfg.Logging.MaxAgeDays); err != nil {
		return err
	}
	logging.Debugf("logging to %s/%s", dir, logFile)
	return nil
}

// newWriter builds the output writer for the selected format.
func newWriter() (*output.Writer, output.Format, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, format, err
	}
	return output.NewWriter(format, output.Config{Colors: !noColor}), format, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rawhdr %s\n", version)
		fmt.Printf("  Commit: %s\n", commit)
		fmt.Printf("  Built:  %s\n", date)
		fmt.Printf("  Config: %s\n", config.GetConfigPath())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage rawhdr configuration file.

Commands:
  rawhdr config --init     Create default config file
  rawhdr config --show     Show example configuration
  rawhdr config --path     Show config file path`,
	RunE: runConfig,
}

var (
	configInit bool
	configShow bool
	configPath bool
)

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Create default config file")
	configCmd.Flags().BoolVar(&configShow, "show", false, "Show example configuration")
	configCmd.Flags().BoolVar(&configPath, "path", false, "Show config file path")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configPath {
		fmt.Println(config.GetConfigPath())
		return nil
	}

	if configInit {
		path := config.GetConfigPath()

		// Check if file already exists
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}

		if err := config.DefaultConfig().Save(); err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}

		fmt.Printf("Created config file: %s\n", path)
		fmt.Println("\nEdit this file to customize defaults.")
		return nil
	}

	if configShow {
		fmt.Println(config.GenerateExample())
		return nil
	}

	// No flag specified, show help
	return cmd.Help()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets version information for the CLI.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}
