package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/RocoByte/vorio-agent/internal/adapter"
	"github.com/RocoByte/vorio-agent/internal/adapter/unifi"
	"github.com/RocoByte/vorio-agent/internal/agent"
	"github.com/RocoByte/vorio-agent/internal/cloud"
	"github.com/RocoByte/vorio-agent/internal/config"
	"github.com/RocoByte/vorio-agent/internal/web"
)

var (
	Version = "dev" // Set by build process
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (optional, env vars work too)")
	logLevel    = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	showVersion = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("vorio-agent %s\n", Version)
		os.Exit(0)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogger(logger, cfg)
	logger.Infof("Starting vorio-agent %s", Version)

	ctrl, err := buildAdapter(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to build controller adapter: %v", err)
	}

	cloudClient := cloud.New(cloud.Options{
		BaseURL:   cfg.Cloud.URL,
		Token:     cfg.Cloud.Token,
		UserAgent: "vorio-agent/" + Version,
		Timeout:   time.Duration(cfg.Cloud.TimeoutSeconds) * time.Second,
		Logger:    logger,
	})

	svc := agent.New(agent.Options{
		Adapter:             ctrl,
		Cloud:               cloudClient,
		Logger:              logger,
		ControllerURL:       cfg.Controller.URL,
		Version:             Version,
		SyncInterval:        time.Duration(cfg.Sync.IntervalSeconds) * time.Second,
		CommandPollInterval: time.Duration(cfg.Sync.CommandPollSeconds) * time.Second,
	})

	var statusServer *web.Server
	if cfg.Web.Enabled {
		statusServer = web.New(cfg.Web.ListenAddr, svc, logger)
		statusServer.Start()
	}

	if err := svc.Start(context.Background()); err != nil {
		logger.Fatalf("Failed to start agent: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")
	svc.Stop()
	if statusServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		statusServer.Shutdown(ctx)
		cancel()
	}
}

func setupLogger(logger *logrus.Logger, cfg *config.Config) {
	level := cfg.Log.Level
	if *logLevel != "" {
		level = *logLevel
	}
	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Log.File != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   true,
		})
	}
}

func buildAdapter(cfg *config.Config, logger *logrus.Logger) (adapter.Adapter, error) {
	switch cfg.Controller.Type {
	case "unifi":
		return unifi.New(unifi.Config{
			ControllerURL:      cfg.Controller.URL,
			Site:               cfg.Controller.Site,
			Username:           cfg.Controller.Username,
			Password:           cfg.Controller.Password,
			APIKey:             cfg.Controller.APIKey,
			InsecureSkipVerify: cfg.Controller.InsecureSkipVerify,
			Timeout:            time.Duration(cfg.Controller.TimeoutSeconds) * time.Second,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported controller type %q", cfg.Controller.Type)
	}
}
