package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bicrea/gateway/internal/auth"
	"github.com/bicrea/gateway/internal/config"
	"github.com/bicrea/gateway/internal/db"
	"github.com/bicrea/gateway/internal/documents"
	"github.com/bicrea/gateway/internal/http/api"
	"github.com/bicrea/gateway/internal/ratelimit"
	internalsettings "github.com/bicrea/gateway/internal/settings"
	"github.com/bicrea/gateway/internal/storage"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the gateway with database-backed components and blocks
// until ctx is cancelled or the listener fails.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	internalsettings.Bind(conn)

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	if jwtConfig.Secret == "" {
		return fmt.Errorf("jwt secret is required (set `jwt.secret` in config or env %s)", config.EnvJWTSecret)
	}

	gatewayCfg, errGateway := config.LoadGatewayConfig(configPath)
	if errGateway != nil {
		return errGateway
	}

	blobs, errBlobs := openBlobStore(ctx, gatewayCfg.Storage)
	if errBlobs != nil {
		return errBlobs
	}

	limiter := ratelimit.NewManager(ratelimit.ManagerOptions{
		Provider: func() ratelimit.SettingsConfig {
			return ratelimit.LoadSettingsConfig(gatewayCfg.RateLimit.Limit)
		},
		Window:     gatewayCfg.RateLimit.Window,
		FailClosed: true,
	})

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Errorf("panic recovered: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}))
	api.Register(engine, api.Deps{
		DB:        conn,
		JWT:       jwtConfig,
		Gateway:   gatewayCfg,
		Limiter:   limiter,
		Auth:      auth.NewService(conn, jwtConfig, gatewayCfg.Lockout),
		Documents: documents.NewService(conn, blobs, gatewayCfg.Upload),
	})

	// A config-file port wins over the flag default.
	port := gatewayCfg.Server.Port
	if port <= 0 {
		port = defaultPort
	}
	if port <= 0 {
		port = 8318
	}
	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{Addr: addr, Handler: engine}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			log.WithError(errShutdown).Warn("server shutdown failed")
		}
	}()

	log.Infof("starting gateway on %s with config=%s", addr, configPath)
	if errServe := server.ListenAndServe(); !errors.Is(errServe, http.ErrServerClosed) {
		return errServe
	}
	return nil
}

// openBlobStore selects the blob backend. An empty endpoint means the
// in-memory store, which loses content on restart and is only meant for
// development.
func openBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.BlobStore, error) {
	if cfg.Endpoint == "" {
		log.Warn("no storage endpoint configured, using in-memory blob store")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewMinioStore(ctx, storage.MinioOptions{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	})
}
