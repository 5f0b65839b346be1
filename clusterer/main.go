package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/adapters/aaa"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/adapters/db"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/adapters/events"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/adapters/lemma"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/adapters/metrics"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/adapters/openai"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/adapters/rest"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/adapters/rest/middleware"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/adapters/wordstat"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/config"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/lexicon"
)

func main() {
	var configPath, tokenFor string
	flag.StringVar(&configPath, "config", "config.yaml", "server configuration file")
	flag.StringVar(&tokenFor, "issue-token", "", "print a signed api token for the user id and exit")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := mustMakeLogger(cfg.LogLevel)

	if tokenFor != "" {
		if err := issueToken(os.Stdout, cfg.Auth, tokenFor, log); err != nil {
			log.Error("cannot issue token", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return err
	}

	lemmatizer, err := lemma.New(log, cfg.Clustering.LemmaCacheSize)
	if err != nil {
		return err
	}

	deps := core.Deps{
		Lemmatizer: lemmatizer,
		Metrics:    metrics.New(prometheus.DefaultRegisterer),
	}
	pingers := make(map[string]core.Pinger)

	// всё остальное опционально: без настроек сервис работает только локально
	if cfg.Generative.APIKey != "" {
		client, err := openai.NewClient(log, cfg.Generative.URL, cfg.Generative.APIKey,
			cfg.Generative.Model, cfg.Generative.Proxy, cfg.Generative.Timeout)
		if err != nil {
			return err
		}
		deps.Generator = client
		pingers["generative"] = client
	} else {
		log.Warn("generative clustering disabled: no api key")
	}

	if cfg.Wordstat.Token != "" {
		client, err := wordstat.NewClient(log, cfg.Wordstat.CollectURL, cfg.Wordstat.RegionsURL,
			cfg.Wordstat.Token, cfg.Wordstat.Limit, cfg.Wordstat.Timeout)
		if err != nil {
			return err
		}
		deps.Volumes = client
		if cfg.Wordstat.RedisURL != "" {
			rdb, err := wordstat.NewRedis(ctx, cfg.Wordstat.RedisURL)
			if err != nil {
				return err
			}
			defer closeWith(log, "redis", rdb.Close)
			cached := wordstat.NewCached(log, client, rdb, cfg.Wordstat.CacheTTL)
			deps.Volumes = cached
			pingers["cache"] = cached
		}
	} else {
		log.Warn("wordstat disabled: no token")
	}

	if cfg.DBAddress != "" {
		storage, err := db.New(log, cfg.DBAddress)
		if err != nil {
			return err
		}
		defer closeWith(log, "db", storage.Close)
		if err := storage.Migrate(); err != nil {
			return err
		}
		deps.Store = storage
		pingers["db"] = storage
	}

	if cfg.BrokerAddress != "" {
		publisher, err := events.NewNatsPublisher(cfg.BrokerAddress, log)
		if err != nil {
			return err
		}
		defer closeWith(log, "broker", publisher.Close)
		deps.Events = publisher
		pingers["broker"] = publisher
	}

	var verifier middleware.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		auth, err := aaa.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, log)
		if err != nil {
			return err
		}
		verifier = auth
	} else {
		log.Warn("jwt secret is not set, trusting X-User-Id header")
	}

	service, err := core.NewService(log, lex, cfg.Policy(), deps)
	if err != nil {
		return err
	}

	v := rest.NewValidator()
	limit := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.Rate(h, cfg.Limits.RPS)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/cluster", clusterRoute(rest.NewClusterHandler(log, v, service, service), verifier, cfg.Limits))
	mux.Handle("POST /api/wordstat/collect", limit(rest.NewCollectHandler(log, v, service)))
	mux.Handle("GET /api/wordstat/regions", rest.NewRegionsHandler(log, service))
	mux.Handle("POST /api/minus-words/suggest", limit(rest.NewSuggestMinusHandler(log, v, service)))
	mux.Handle("POST /api/cluster-names", limit(rest.NewClusterNamesHandler(log, v, service)))
	mux.Handle("POST /api/projects", middleware.Auth(rest.NewCreateProjectHandler(log, v, service), verifier))
	mux.Handle("GET /api/projects/{id}/results", middleware.Auth(rest.NewProjectResultsHandler(log, service), verifier))
	mux.Handle("GET /ping", rest.NewPingHandler(log, pingers))
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		Handler:           mux,
		ReadTimeout:       cfg.HTTPServer.Timeout,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		WriteTimeout:      cfg.HTTPServer.Timeout,
		IdleTimeout:       2 * cfg.HTTPServer.Timeout,
	}

	go func() {
		<-ctx.Done()
		log.Debug("shutting down server")
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error("erroneous shutdown", "error", err)
		}
	}()

	log.Info("server started", "address", cfg.HTTPServer.Address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func closeWith(log *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Error("cannot close", "component", name, "error", err)
	}
}

func mustMakeLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		slogLevel = slog.LevelDebug
	case "INFO":
		slogLevel = slog.LevelInfo
	case "WARN", "WARNING":
		slogLevel = slog.LevelWarn
	case "ERROR":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slogLevel,
		AddSource: false,
	}))
}

// clusterRoute identifies the caller before rate limiting so that
// authenticated users get their own bucket instead of sharing one per address.
func clusterRoute(h http.HandlerFunc, verifier middleware.TokenVerifier, limits config.Limits) http.HandlerFunc {
	return middleware.Identify(
		middleware.Rate(middleware.Concurrency(h, limits.ClusterConcurrency), limits.RPS),
		verifier)
}

// issueToken печатает токен для ручных запросов и скриптов
func issueToken(w io.Writer, cfg config.Auth, userID string, log *slog.Logger) error {
	auth, err := aaa.New(cfg.JWTSecret, cfg.TokenTTL, log)
	if err != nil {
		return err
	}
	token, err := auth.Issue(userID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
