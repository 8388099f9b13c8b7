package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/adambn/recruitly/internal"
	"github.com/adambn/recruitly/internal/config"
	"github.com/adambn/recruitly/internal/logging"
)

const (
	defaultAdminUsername      = "admin"
	defaultAdminPassword      = "admin123"
	defaultTokenSigningSecret = "recruitly-dev-secret"
)

func main() {
	env := flag.String("env", "development", "environment: development or production")
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	logFileName := flag.String("logfile", "recruitly.log", "log file name, empty for stdout only")
	logFormatJSON := flag.Bool("json-log", false, "use JSON log formatter")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		fmt.Printf("failed to load config [%s] for env [%s]: %s\n", *configPath, *env, err)
		os.Exit(1)
	}

	logFilePath := ""
	if *logFileName != "" {
		logFilePath = filepath.Join(cfg.LogsPath, *logFileName)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      logFilePath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    *logFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SentryServerName: "recruitly-backend",
	})

	log.Infof("starting recruitly backend, env: %s", cfg.Environment)

	// secrets come from the environment, defaults are for local
	// development only and must never reach production
	adminUsername := os.Getenv("RECRUITLY_ADMIN_USERNAME")
	if adminUsername == "" {
		log.Errorf("admin username not set, using insecure default")
		adminUsername = defaultAdminUsername
	}
	adminPassword := os.Getenv("RECRUITLY_ADMIN_PASSWORD")
	if adminPassword == "" {
		log.Errorf("admin password not set, using insecure default")
		adminPassword = defaultAdminPassword
	}
	tokenSigningSecret := os.Getenv("RECRUITLY_SESSION_SECRET")
	if tokenSigningSecret == "" {
		log.Errorf("session token signing secret not set, using insecure default")
		tokenSigningSecret = defaultTokenSigningSecret
	}
	redisPassword := os.Getenv("RECRUITLY_REDIS_PASS")
	if redisPassword == "" {
		log.Warnln("redis password not set, assuming unprotected redis")
	}

	tracingEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
	if tracingEnabled && os.Getenv("HONEYCOMB_API_KEY") == "" {
		log.Errorln("tracing enabled but HONEYCOMB_API_KEY not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := internal.NewServer(ctx, internal.NewServerParams{
		Config:             cfg,
		VersionInfo:        versionInfo(),
		AdminUsername:      adminUsername,
		AdminPassword:      adminPassword,
		TokenSigningSecret: tokenSigningSecret,
		RedisPassword:      redisPassword,
		TracingEnabled:     tracingEnabled,
	})
	if err != nil {
		log.Fatalf("failed to create server: %s", err)
	}

	server.Serve(cfg.Host, cfg.Port)

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, syscall.SIGINT, syscall.SIGTERM)
	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, shutting down ...", receivedSig)

	server.GracefulShutdown()
}

// versionInfo tries to get the last commit hash from git, best effort
func versionInfo() string {
	stdout, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		log.Tracef("get last commit hash: %s", err)
		return "unknown"
	}
	return strings.TrimSpace(string(stdout))
}
