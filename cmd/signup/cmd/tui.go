package cmd

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/livetemplate/signup/internal/api"
	"github.com/livetemplate/signup/internal/runtime"
	"github.com/livetemplate/signup/internal/tui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const debugLogFile = "signup-debug.log"

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Show the sign-up form in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, cfgFile)
	if err != nil {
		return err
	}

	// The terminal belongs to the form; logs go to a file in debug mode.
	logrus.SetOutput(io.Discard)
	if cfg.Debug {
		f, err := tea.LogToFile(debugLogFile, "signup")
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", debugLogFile, err)
		}
		defer f.Close()
		logrus.SetOutput(f)
		logrus.SetLevel(logrus.DebugLevel)
	}

	client := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.GetTimeout()),
		api.WithLogger(logrus.WithField("component", "api")))
	page := runtime.New(client,
		runtime.WithFailurePolicy(cfg.API.GetFailurePolicy()),
		runtime.WithLogger(logrus.WithField("component", "runtime")))
	defer page.Close()

	return tui.Run(page, tea.WithAltScreen())
}
