package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/everafterhq/everafter/internal/auth"
	"github.com/everafterhq/everafter/internal/cache"
	"github.com/everafterhq/everafter/internal/config"
	"github.com/everafterhq/everafter/internal/database"
	"github.com/everafterhq/everafter/internal/enquiry"
	"github.com/everafterhq/everafter/internal/invite"
	"github.com/everafterhq/everafter/internal/logging"
	"github.com/everafterhq/everafter/internal/media"
	"github.com/everafterhq/everafter/internal/rsvp"
	"github.com/everafterhq/everafter/internal/server"
	"github.com/everafterhq/everafter/internal/users"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "everafter-api",
		Short: "Everafter wedding microsite backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("session-issuer", defaults.GetString("session.issuer"), "Expected issuer of the provider session cookie")
	cmd.PersistentFlags().String("session-cookie-name", defaults.GetString("session.cookie_name"), "Name of the provider session cookie")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Dashboard token TTL in minutes")
	cmd.PersistentFlags().String("media-dir", defaults.GetString("media.dir"), "Directory for uploaded images")
	cmd.PersistentFlags().String("media-base-url", defaults.GetString("media.base_url"), "Public base URL for uploaded images")
	cmd.PersistentFlags().String("redis-addr", "", "Redis address for the shared invite cache (empty disables Redis)")
	cmd.PersistentFlags().String("invite-default-id", defaults.GetString("invite.default_id"), "Wedding identifier used by single-tenant deployments")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "session.issuer", "session-issuer")
	bindFlag(cmd, "session.cookie_name", "session-cookie-name")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "media.dir", "media-dir")
	bindFlag(cmd, "media.base_url", "media-base-url")
	bindFlag(cmd, "redis.addr", "redis-addr")
	bindFlag(cmd, "invite.default_id", "invite-default-id")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	inviteCache, err := newInviteCache(ctx, appConfig, logger)
	if err != nil {
		return err
	}

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSecret),
		Issuer:        appConfig.SessionIssuer,
		CookieName:    appConfig.SessionCookie,
	})
	if err != nil {
		return err
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSecret),
		Issuer:        "everafter-api",
		Audience:      "everafter-dashboard",
		TokenTTL:      appConfig.TokenTTL,
	})

	identityService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	inviteService, err := invite.NewService(invite.ServiceConfig{
		Database: db,
		Cache:    inviteCache,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	rsvpService, err := rsvp.NewService(rsvp.ServiceConfig{
		Database:   db,
		IDProvider: rsvp.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	enquiryService, err := enquiry.NewService(enquiry.ServiceConfig{
		Database:   db,
		IDProvider: enquiry.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	mediaStore, err := media.NewFileStore(media.FileStoreConfig{
		Directory: appConfig.MediaDirectory,
		BaseURL:   appConfig.MediaBaseURL,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SessionVerifier: sessionValidator,
		TokenManager:    tokenManager,
		Identities:      identityService,
		InviteService:   inviteService,
		RsvpService:     rsvpService,
		EnquiryService:  enquiryService,
		MediaStore:      mediaStore,
		MediaDirectory:  mediaStore.Directory(),
		MediaBasePath:   appConfig.MediaBaseURL,
		DefaultWedding:  appConfig.DefaultInviteID,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newInviteCache picks the shared Redis cache when an address is configured,
// otherwise the process-local one.
func newInviteCache(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (cache.Cache, error) {
	if appConfig.RedisAddr == "" {
		return cache.NewMemory(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     appConfig.RedisAddr,
		Password: appConfig.RedisPassword,
	})
	redisCache, err := cache.NewRedis(ctx, cache.RedisConfig{Client: client})
	if err != nil {
		return nil, err
	}
	logger.Info("invite cache using redis", zap.String("addr", appConfig.RedisAddr))
	return redisCache, nil
}
