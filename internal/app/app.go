// Package app boots the campus meals server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/igifu/campus-meals/internal/accounts"
	"github.com/igifu/campus-meals/internal/config"
	"github.com/igifu/campus-meals/internal/db"
	"github.com/igifu/campus-meals/internal/http/api"
	"github.com/igifu/campus-meals/internal/ledger"
	"github.com/igifu/campus-meals/internal/ratelimit"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := openDatabase(dsn)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// RunServer serves the HTTP API until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	serverCfg, err := config.LoadServerConfig(configPath, defaultPort)
	if err != nil {
		return err
	}
	jwtCfg, _ := config.LoadJWTConfig(configPath)
	if strings.TrimSpace(jwtCfg.Secret) == "" {
		return fmt.Errorf("jwt secret is not configured (set jwt.secret or %s)", config.EnvJWTSecret)
	}
	rateCfg, err := config.LoadRateLimitConfig(configPath)
	if err != nil {
		return err
	}
	seedCfg, err := config.LoadAdminSeedConfig(configPath)
	if err != nil {
		return err
	}

	if serverCfg.Debug {
		log.SetLevel(log.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := openDatabase(dsn)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	store := accounts.NewStore(conn)
	if _, errSeed := SeedAdmin(ctx, store, seedCfg); errSeed != nil {
		return errSeed
	}

	limiter := ratelimit.NewManager(ratelimit.StaticSettings(ratelimit.SettingsFromConfig(rateCfg)), time.Now, nil)
	defer func() {
		if errClose := limiter.Close(); errClose != nil {
			log.WithError(errClose).Warn("rate limit: close redis failed")
		}
	}()

	mealLedger := ledger.New(conn)
	router := api.NewRouter(api.Deps{
		DB:       conn,
		Ledger:   mealLedger,
		Accounts: store,
		JWT:      jwtCfg,
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:              serverCfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.WithFields(log.Fields{
		"addr":       srv.Addr,
		"rate_limit": rateCfg.Limit,
		"redis":      rateCfg.Redis.Enabled,
	}).Info("campus meals server listening")
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

func openDatabase(dsn string) (*gorm.DB, error) {
	if target, errDescribe := describeDatabase(dsn); errDescribe == nil {
		log.WithFields(target.fields()).Info("opening database")
	}
	return db.Open(dsn)
}

func closeDatabase(conn *gorm.DB) {
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.Errorf("sql db close error: %v", errClose)
	}
}
