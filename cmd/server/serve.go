package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jdcb4/word-guessy-online/internal/httpapi"
	"github.com/jdcb4/word-guessy-online/internal/hub"
	"github.com/jdcb4/word-guessy-online/internal/identity"
	"github.com/jdcb4/word-guessy-online/internal/words"
)

type Config struct {
	bind           string
	port           int
	publicURL      string
	origins        []string
	sessionTimeout time.Duration
	verbose        bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func (c *Config) baseURL() string {
	if c.publicURL != "" {
		return strings.TrimRight(c.publicURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.port)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WORDGUESSY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "server",
		Short:   "Realtime multi-team word guessing game server.",
		Args:    cobra.ExactArgs(0),
		Version: httpapi.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WORDGUESSY_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: WORDGUESSY_PORT)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "externally reachable base url, used in join links (env: WORDGUESSY_PUBLIC_URL)")
	fs.StringSliceVar(&cfg.origins, "allowed-origins", nil, "origin patterns accepted for websocket upgrades (env: WORDGUESSY_ALLOWED_ORIGINS)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended (env: WORDGUESSY_SESSION_TIMEOUT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: WORDGUESSY_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func serve(ctx context.Context, cfg *Config) error {
	logCfg := zap.NewProductionConfig()
	if cfg.verbose {
		logCfg = zap.NewDevelopmentConfig()
	}
	logger, err := logCfg.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()

	corpus, err := words.LoadCorpus()
	if err != nil {
		return fmt.Errorf("load word corpus: %w", err)
	}
	logger.Info("loaded word corpus",
		zap.Int("words", len(corpus)),
		zap.Strings("categories", words.Categories(corpus)))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := identity.NewResolver()
	h := hub.NewHub(ctx, resolver, corpus, cfg.sessionTimeout, logger)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           httpapi.SetupRoutes(h, resolver, cfg.origins, cfg.baseURL(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		h.Inbox() <- hub.ShutdownHub{}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
