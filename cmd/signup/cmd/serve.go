package cmd

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/livetemplate/signup/internal/config"
	"github.com/livetemplate/signup/internal/devapi"
	"github.com/livetemplate/signup/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveHost   string
	servePort   int
	serveWatch  bool
	serveDevAPI bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sign-up page",
	Long: `Serve the sign-up page over HTTP. The page stays live over a
websocket and falls back to a plain form post without scripts.

With --dev-api the development users API is mounted on the same server
and, unless --api is given, the page submits to it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "reload the config file when it changes")
	serveCmd.Flags().BoolVar(&serveDevAPI, "dev-api", false, "mount the development users API")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	load := func(path string) (*config.Config, error) {
		cfg, err := loadConfig(cmd, path)
		if err != nil {
			return nil, err
		}
		if cfg.Server.DevAPI && !cmd.Flags().Changed("api") {
			cfg.API.BaseURL = selfURL(cfg.Server)
		}
		return cfg, nil
	}

	path := cfgFile
	if path == "" {
		path = config.FileName
	}
	cfg, err := load(path)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	var opts []server.Option
	if cfg.Server.DevAPI {
		opts = append(opts, server.WithDevAPI(devapi.New(logrus.WithField("component", "devapi")).Handler()))
	}
	srv := server.New(cfg, opts...)
	defer srv.Close()

	if serveWatch {
		if err := srv.EnableWatch(path, load); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"addr":    cfg.Server.Addr(),
		"api":     cfg.API.BaseURL,
		"dev_api": cfg.Server.DevAPI,
	}).Info("starting sign-up server")
	return srv.ListenAndServe(ctx)
}

// selfURL is the address the page server reaches itself on.
func selfURL(c config.ServerConfig) string {
	host := c.Host
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}
