package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/2beens/fitdash/internal"
	"github.com/2beens/fitdash/internal/config"
	"github.com/2beens/fitdash/internal/logging"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SentryServerName: "fitdash",
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using dashboard config: [%s]", cfg.DashboardConfigPath)
	log.Debugf("using warehouse [%s], query cache [%s]", cfg.Warehouse, cfg.QueryCache)

	authTokenHash := os.Getenv("FITDASH_AUTH_TOKEN_HASH")
	if authTokenHash == "" {
		log.Warnln("auth token hash not set, dashboard is open. use FITDASH_AUTH_TOKEN_HASH to protect it")
	}

	var allowedOrigins []string
	if origins := os.Getenv("FITDASH_ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = strings.Split(origins, ",")
	}

	redisPassword := os.Getenv("FITDASH_REDIS_PASS")
	if cfg.RedisEnabled() && redisPassword == "" {
		log.Errorf("redis password not set. use FITDASH_REDIS_PASS")
	}

	postgresUser := os.Getenv("FITDASH_POSTGRES_USER")
	postgresPassword := os.Getenv("FITDASH_POSTGRES_PASS")
	if cfg.Warehouse == config.WarehousePostgres && postgresPassword == "" {
		log.Warnln("postgres password not set. use FITDASH_POSTGRES_PASS")
	}

	if cfg.Warehouse == config.WarehouseBigQuery && cfg.BigQueryCredentialsFile == "" {
		log.Debugln("bigquery credentials file not set, using application default credentials")
	}

	if otelServiceName := os.Getenv("OTEL_SERVICE_NAME"); otelServiceName == "" {
		log.Warnln("OTEL_SERVICE_NAME env var not set")
	}

	honeycombEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
	if honeycombEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
	} else {
		log.Debugln("honeycomb tracing disabled")
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			RedisPassword:           redisPassword,
			PostgresUser:            postgresUser,
			PostgresPassword:        postgresPassword,
			AuthTokenHash:           authTokenHash,
			AllowedOrigins:          allowedOrigins,
			HoneycombTracingEnabled: honeycombEnabled,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	server.GracefulShutdown()
}
