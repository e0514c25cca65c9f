package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/genialityco/wa-multi-session-backend/internal/authstore"
	"github.com/genialityco/wa-multi-session-backend/internal/config"
	"github.com/genialityco/wa-multi-session-backend/internal/driver"
	"github.com/genialityco/wa-multi-session-backend/internal/event"
	"github.com/genialityco/wa-multi-session-backend/internal/logging"
	"github.com/genialityco/wa-multi-session-backend/internal/server"
	"github.com/genialityco/wa-multi-session-backend/internal/session"
	"github.com/genialityco/wa-multi-session-backend/internal/ws"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the messaging gateway server",
	Long: `Start the gateway: REST API under /api, websocket status channel at /ws.

The auth store backend (local filesystem or MongoDB) is selected via
configuration; a gateway with a mongo backend refuses to start when the
store is unreachable.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(cfg.LogLevel),
			Pretty: cfg.LogPretty || rootLogPretty,
		})
	}

	ctx := context.Background()

	store, err := buildAuthStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	bus := event.New()
	defer bus.Close()

	factory := driver.DevFactory(driver.DevConfig{AutoPair: cfg.Driver.AutoPair()})
	sessions := session.NewService(factory, store, bus, authstore.PurgePolicy(cfg.Auth.Purge))

	hub := ws.NewHub(bus, func(clientID string) (string, bool) {
		sess, ok := sessions.Get(clientID)
		if !ok {
			return "", false
		}
		return string(sess.Status()), true
	})

	serverConfig := server.DefaultConfig()
	serverConfig.Port = cfg.Port
	serverConfig.Host = cfg.Host
	serverConfig.EnableCORS = cfg.EnableCORS

	srv := server.New(serverConfig, sessions, hub)

	go func() {
		logging.Info().
			Str("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)).
			Str("authBackend", cfg.Auth.Backend).
			Msg("gateway listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("session shutdown error")
	}

	logging.Info().Msg("gateway stopped")
	return nil
}

// buildAuthStore constructs the configured auth store backend.
func buildAuthStore(ctx context.Context, cfg *config.Config) (authstore.Store, error) {
	switch cfg.Auth.Backend {
	case config.BackendLocal:
		return authstore.NewLocal(cfg.Auth.LocalRoot)
	case config.BackendMongo:
		return authstore.NewMongo(ctx, authstore.MongoConfig{
			URI:        cfg.Auth.MongoURI,
			Database:   cfg.Auth.MongoDatabase,
			Collection: cfg.Auth.MongoCollection,
		})
	default:
		return nil, fmt.Errorf("unknown auth backend %q", cfg.Auth.Backend)
	}
}
