package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Iron-Ham/image2video/internal/config"
	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/Iron-Ham/image2video/internal/httpapi"
	"github.com/Iron-Ham/image2video/internal/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat workflow over HTTP",
	Long: `Start the orchestrator and expose it on server.addr.

The chat host posts each inbound message to POST /v1/events and relays the
returned reply to the user. SIGINT or SIGTERM stops the server, clears all
sessions and exits.`,
	RunE: runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{Logger: logger})
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	watchConfig(a.logger)

	if !strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewServer(a.orch, a.logger).SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// watchConfig reports edits to the config file. Settings are bound at
// startup, so a valid edit only takes effect after a restart.
func watchConfig(logger *logging.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := config.Unmarshal()
		if err != nil {
			logger.Warn("config file changed but could not be read", "file", e.Name, "error", err.Error())
			return
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			logger.Warn("config file changed and is now invalid", "file", e.Name, "error", config.ValidationErrors(errs).Error())
			return
		}
		logger.Info("config file changed; restart to apply", "file", e.Name)
	})
	viper.WatchConfig()
}
