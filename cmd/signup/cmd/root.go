// Package cmd holds the signup command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/livetemplate/signup/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	apiURL  string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "signup",
	Short: "Sign-up page for the users API",
	Long: `signup renders a sign-up form and submits it to a users API.

Commands:
  serve    - serve the page in the browser
  tui      - show the form in the terminal
  devapi   - run a development users API
  init     - write a default config file`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree and reports any error on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "users API base URL")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// loadConfig resolves the configuration: .env, then the config file, then
// SIGNUP_* variables, then flags set on cmd.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.LoadFromDir(".")
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("api") {
		cfg.API.BaseURL = apiURL
	}
	if flags.Changed("debug") {
		cfg.Debug = debug
	}
	if flags.Changed("host") {
		cfg.Server.Host = serveHost
	}
	if flags.Changed("port") {
		cfg.Server.Port = servePort
	}
	if flags.Changed("dev-api") {
		cfg.Server.DevAPI = serveDevAPI
	}
}

func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}
