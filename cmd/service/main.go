package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/gatejohn/internal/app"
	"github.com/dropDatabas3/gatejohn/internal/cache"
	"github.com/dropDatabas3/gatejohn/internal/config"
	httpx "github.com/dropDatabas3/gatejohn/internal/http"
	"github.com/dropDatabas3/gatejohn/internal/http/handlers"
	jwtx "github.com/dropDatabas3/gatejohn/internal/jwt"
	"github.com/dropDatabas3/gatejohn/internal/login"
	"github.com/dropDatabas3/gatejohn/internal/oauth/google"
	"github.com/dropDatabas3/gatejohn/internal/oauth2"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store/core"
	"github.com/dropDatabas3/gatejohn/internal/store/memory"
	pgdriver "github.com/dropDatabas3/gatejohn/internal/store/pg"
	pgmigrations "github.com/dropDatabas3/gatejohn/migrations/postgres"
)

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func main() {
	_ = godotenv.Load(".env")     // base
	_ = godotenv.Load(".env.dev") // dev overrides

	cfgPath := flag.String("config", "", "ruta del YAML de configuración")
	flag.Parse()
	if *cfgPath == "" && fileExists("config.yaml") {
		*cfgPath = "config.yaml"
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Init(logger.Config{})
		logger.L().Fatal("config inválida", logger.Err(err))
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "gatejohn",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ====== STORE ======
	var (
		store    core.Repository
		keyStore interface {
			GetActiveSigningKey(ctx context.Context) (*core.SigningKey, error)
			ListPublicSigningKeys(ctx context.Context) ([]core.SigningKey, error)
			InsertSigningKey(ctx context.Context, k *core.SigningKey) error
		}
		poolFn func() *pgxpool.Pool
	)
	switch cfg.Storage.Driver {
	case "postgres":
		lifetime, _ := time.ParseDuration(cfg.Storage.Postgres.ConnMaxLifetime)
		pgStore, err := pgdriver.New(ctx, cfg.Storage.DSN, pgdriver.Config{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: lifetime,
		})
		if err != nil {
			log.Fatal("no se pudo abrir postgres", logger.Err(err))
		}
		defer pgStore.Close()
		if cfg.Storage.Migrate {
			if err := pgStore.RunMigrations(ctx, pgmigrations.FS); err != nil {
				log.Fatal("migraciones fallaron", logger.Err(err))
			}
		}
		store = pgStore
		keyStore = pgStore
		poolFn = pgStore.Pool
	default:
		store = memory.New()
		keyStore = jwtx.NewMemorySigningKeyStore()
	}

	// ====== CACHE ======
	cacheClient, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		log.Fatal("no se pudo crear cache", logger.Err(err))
	}
	defer func() { _ = cacheClient.Close() }()

	// ====== JWT ======
	ks := jwtx.NewKeystore(ctx, keyStore)
	if err := ks.EnsureBootstrap(); err != nil {
		log.Fatal("bootstrap de claves falló", logger.Err(err))
	}
	issuer := jwtx.NewIssuer(cfg.JWT.Issuer, ks)
	issuer.AccessTTL = cfg.AccessTTLDuration()
	issuer.RefreshTTL = cfg.RefreshTTLDuration()

	// ====== CORE ======
	googleEnabled := cfg.Providers.Google.Enabled || cfg.Login.MockGoogleAuth
	c := &app.Container{
		Store:    store,
		Cache:    cacheClient,
		Issuer:   issuer,
		Registry: oauth2.NewRegistry(store),
		Codes:    oauth2.NewCodeStore(cacheClient, cfg.CodeTTLDuration()),
		Redirects: login.NewRedirectValidator(
			store, cfg.Server.BaseURL, cfg.Login.RedirectWhitelist, googleEnabled,
		),
	}
	c.Tokens = oauth2.NewGenerator(store, c.Codes, issuer)

	// ====== HTTP ======
	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{Pool: poolFn})
	if err != nil {
		log.Fatal("no se pudieron registrar métricas", logger.Err(err))
	}

	loginCfg := handlers.GoogleLoginConfig{
		Mock:     cfg.Login.MockGoogleAuth,
		MockUser: cfg.Login.MockGoogleUser,
		BaseURL:  cfg.Server.BaseURL,
	}
	if cfg.Providers.Google.Enabled && !cfg.Login.MockGoogleAuth {
		loginCfg.OIDC = google.New(
			cfg.Providers.Google.ClientID,
			cfg.Providers.Google.ClientSecret,
			cfg.Providers.Google.RedirectURL,
			cfg.Providers.Google.Scopes,
		)
	}

	deps := httpx.RouterDeps{
		Readyz:             handlers.NewReadyzHandler(c),
		JWKS:               handlers.NewJWKSHandler(c),
		OIDCDiscovery:      handlers.NewOIDCDiscoveryHandler(c),
		OAuthAuthorize:     handlers.NewOAuthAuthorizeHandler(c),
		OAuthToken:         handlers.NewOAuthTokenHandler(c),
		OAuthRevoke:        handlers.NewOAuthRevokeHandler(c),
		AdminClients:       handlers.NewAdminClientsHandler(c, cfg.Admin.APIKey),
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	}
	if googleEnabled {
		deps.GoogleLogin = handlers.NewGoogleLoginHandler(c, loginCfg)
		deps.GoogleCallback = handlers.NewGoogleCallbackHandler(c, loginCfg)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpx.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// /metrics va en su propio listener: no se expone junto a la API.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metricsHandler)
	metricsSrv := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("escuchando", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("metrics escuchando", zap.String("addr", cfg.Server.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutCtx)
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server terminó con error", logger.Err(err))
	}
	log.Info("apagado limpio")
}
