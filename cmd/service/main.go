package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/api"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/config"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/control"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/gateway"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/journal"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/logging"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/playback"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/room"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/session"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "room-client",
	Short:        "Joins a watch room and keeps its state in sync",
	SilenceUsage: true,
	RunE:         runClient,
}

var (
	flagServerURL      string
	flagWSURL          string
	flagReconnectDelay time.Duration
	flagMaxDesync      float64
	flagStoreBackend   string
	flagStorePath      string
	flagRedisURL       string
	flagJournalDSN     string
	flagControlAddr    string
	flagLogLevel       string
	flagLogPretty      bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagServerURL, "server-url", "", "room server address (env SERVER_URL)")
	flags.StringVar(&flagWSURL, "ws-url", "", "event stream URL, derived from --server-url when empty (env WS_URL)")
	flags.DurationVar(&flagReconnectDelay, "reconnect-delay", 0, "wait between connection attempts (env RECONNECT_DELAY)")
	flags.Float64Var(&flagMaxDesync, "max-desync", 0, "seconds of drift tolerated before seeking (env MAX_DESYNC)")
	flags.StringVar(&flagStoreBackend, "store", "", "token and preference store: memory, pebble or redis (env STORE_BACKEND)")
	flags.StringVar(&flagStorePath, "store-path", "", "pebble directory (env STORE_PATH)")
	flags.StringVar(&flagRedisURL, "redis-url", "", "redis address for the redis store (env REDIS_URL)")
	flags.StringVar(&flagJournalDSN, "journal-dsn", "", "postgres DSN of the event journal, empty disables it (env JOURNAL_DSN)")
	flags.StringVar(&flagControlAddr, "control-addr", "", "control server address, empty disables it (env CONTROL_ADDR)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level (env LOG_LEVEL)")
	flags.BoolVar(&flagLogPretty, "log-pretty", false, "human readable logs (env LOG_PRETTY)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the flags given on the
// command line on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("server-url") {
		cfg.ServerURL = flagServerURL
		if os.Getenv("WS_URL") == "" {
			cfg.WSURL = ""
		}
	}
	if flags.Changed("ws-url") {
		cfg.WSURL = flagWSURL
	}
	if flags.Changed("reconnect-delay") {
		cfg.ReconnectDelay = flagReconnectDelay
	}
	if flags.Changed("max-desync") {
		cfg.MaxDesync = flagMaxDesync
	}
	if flags.Changed("store") {
		cfg.StoreBackend = flagStoreBackend
	}
	if flags.Changed("store-path") {
		cfg.StorePath = flagStorePath
	}
	if flags.Changed("redis-url") {
		cfg.RedisURL = flagRedisURL
	}
	if flags.Changed("journal-dsn") {
		cfg.JournalDSN = flagJournalDSN
	}
	if flags.Changed("control-addr") {
		cfg.ControlAddr = flagControlAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-pretty") {
		cfg.LogPretty = flagLogPretty
	}
	return cfg, cfg.Finalize()
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPebble:
		return store.OpenPebble(cfg.StorePath)
	case config.BackendRedis:
		return store.OpenRedis(ctx, cfg.RedisURL, "room-client:")
	default:
		return store.NewMemoryStore(), nil
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer st.Close()

	var (
		wg  sync.WaitGroup
		jnl *journal.Journal
	)
	if cfg.JournalDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.JournalDSN)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer pool.Close()
		if err := journal.AutoMigrate(ctx, pool); err != nil {
			return err
		}
		jnl = journal.New(pool, journal.DefaultBuffer, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			jnl.Run(ctx)
		}()
	}

	sess := session.New("")
	client := api.New(cfg.ServerURL, sess, nil, log)
	media := playback.NewSimulatedMedia(nil)
	rm := room.New(room.Config{MaxDesync: cfg.MaxDesync, Media: media, Store: st}, sess, client, log)

	gwCfg := gateway.Config{URL: cfg.WSURL, ReconnectDelay: cfg.ReconnectDelay}
	if jnl != nil {
		gwCfg.Recorder = jnl
	}
	gw := gateway.New(gwCfg, sess, rm, rm, log)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = rm.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = gw.Run(ctx)
	}()

	var ctrlJournal control.Journal
	if jnl != nil {
		ctrlJournal = jnl
	}
	httpSrv := serveControl(cfg.ControlAddr, control.NewServer(rm, st, ctrlJournal, log), log)

	log.Info().
		Str("server", cfg.ServerURL).
		Str("stream", cfg.WSURL).
		Str("store", cfg.StoreBackend).
		Bool("journal", jnl != nil).
		Msg("room client started")

	<-ctx.Done()
	if httpSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("control server shutdown")
		}
	}
	wg.Wait()
	log.Info().Msg("shutdown complete")
	return nil
}

// serveControl starts the control server unless addr is empty.
func serveControl(addr string, srv *control.Server, log zerolog.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	r := srv.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(15*time.Second),
	)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("control server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("control server stopped")
		}
	}()
	return httpSrv
}
