package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/tendant/device-trust/pkg/config"
	"github.com/tendant/device-trust/pkg/device"
	deviceapi "github.com/tendant/device-trust/pkg/device/api"
	"github.com/tendant/device-trust/pkg/ipblacklist"
	"github.com/tendant/device-trust/pkg/reputation"
	"github.com/tendant/device-trust/pkg/risk"
	"github.com/tendant/device-trust/pkg/securitylog"
	"github.com/tendant/device-trust/pkg/session"
	sessionapi "github.com/tendant/device-trust/pkg/session/api"
)

type Config struct {
	TrustDbConfig config.DatabaseConfig
	AppConfig     app.AppConfig
}

func main() {

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	deviceConfig := config.NewDeviceConfigFromEnv()
	sessionConfig := config.NewSessionConfigFromEnv()
	reputationConfig := config.NewReputationConfigFromEnv()

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	dbConfig := cfg.TrustDbConfig.ToDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(-1)
	}

	securityLogService := securitylog.NewService(securitylog.NewPostgresRepository(pool))
	blacklistService := ipblacklist.NewService(ipblacklist.NewPostgresRepository(pool))

	sessionRepo := session.NewPostgresRepository(pool)
	sessionService := session.NewService(sessionRepo, securityLogService, sessionConfig.IdleTimeout)

	deviceRepo, err := device.NewDeviceRepository("postgres", device.RepositoryConfig{Pool: pool})
	if err != nil {
		slog.Error("Failed creating device repository", "error", err)
		os.Exit(-1)
	}
	deviceService := device.NewDeviceService(deviceRepo, sessionRepo, securityLogService, deviceConfig)

	httpClient := &http.Client{Timeout: reputationConfig.LookupTimeout}
	reputationClient := reputation.NewClient(
		reputation.NewPostgresCacheRepository(pool),
		reputationConfig.CacheTTL,
		reputation.NewAbuseDBProvider(httpClient,
			reputationConfig.AbuseDBBaseURL, reputationConfig.AbuseDBAPIKey, reputationConfig.AbuseDBThreshold),
		reputation.NewQualityScoreProvider(httpClient,
			reputationConfig.QualityScoreBaseURL, reputationConfig.QualityScoreAPIKey, reputationConfig.QualityScoreThreshold),
	)

	scorer := risk.NewScorer(deviceRepo, reputationClient, deviceConfig.ActiveWindow)

	validator := session.NewValidator(sessionRepo, deviceService, blacklistService, securityLogService, sessionConfig.IdleTimeout)

	deviceHandle := deviceapi.NewDeviceHandler(deviceService, scorer)
	sessionHandle := sessionapi.NewSessionHandler(validator, sessionService)

	server.R.Route("/api", func(r chi.Router) {
		deviceHandle.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(sessionHandle.Middleware)
			deviceHandle.RegisterRoutes(r)
			sessionHandle.RegisterRoutes(r)
		})
	})

	server.Run()
}
