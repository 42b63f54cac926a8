package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/livetemplate/signup/internal/devapi"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	devAPIHost string
	devAPIPort int
)

var devAPICmd = &cobra.Command{
	Use:   "devapi",
	Short: "Run the development users API",
	Long: `Run an in-memory users API that validates sign-ups the way the
production API does. Users are lost on exit.`,
	Args: cobra.NoArgs,
	RunE: runDevAPI,
}

func init() {
	devAPICmd.Flags().StringVar(&devAPIHost, "host", "localhost", "listen host")
	devAPICmd.Flags().IntVarP(&devAPIPort, "port", "p", 8080, "listen port")
	rootCmd.AddCommand(devAPICmd)
}

func runDevAPI(cmd *cobra.Command, args []string) error {
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.WithField("component", "devapi")

	srv := &http.Server{
		Addr:              net.JoinHostPort(devAPIHost, strconv.Itoa(devAPIPort)),
		Handler:           devapi.New(log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.WithField("addr", srv.Addr).Info("development users API listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
