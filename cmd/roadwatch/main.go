package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"roadwatch/alert"
	"roadwatch/httpapi"
	"roadwatch/ledger"
	"roadwatch/logger"
	"roadwatch/model"
	"roadwatch/predict"
)

type Config struct {
	Http struct {
		Port           int      `yaml:"port"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	Artifacts struct {
		Dir string `yaml:"dir"`
	} `yaml:"artifacts"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log       logger.Config `yaml:"log"`
	Inference struct {
		CacheSize   int  `yaml:"cache_size"`
		ScaleInputs bool `yaml:"scale_inputs"`
	} `yaml:"inference"`
	Alert struct {
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		Recipient      string `yaml:"recipient"`
		Smtp           struct {
			Host        string `yaml:"host"`
			Port        int    `yaml:"port"`
			From        string `yaml:"from"`
			PasswordEnv string `yaml:"password_env"`
		} `yaml:"smtp"`
		Webhook struct {
			URL string `yaml:"url"`
		} `yaml:"webhook"`
	} `yaml:"alert"`
}

func main() {
	// Look for config in root even if run from cmd/
	configPath := "config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = filepath.Join("..", "config.yaml")
	}

	config, err := loadConfig(configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(config.Log)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	// The service must not start with a partial model set.
	registry, err := model.Load(config.Artifacts.Dir)
	if err != nil {
		log.Fatal("failed to load model artifacts", zap.Error(err))
	}
	log.Info("model registry loaded",
		zap.Int("models", len(registry.Models())),
		zap.Int("features", registry.FeatureCount()),
		zap.String("dir", config.Artifacts.Dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := registry.Watch(ctx, log); err != nil {
		log.Warn("artifact watcher unavailable", zap.Error(err))
	}

	led, err := ledger.Open(config.Database.Path, registry.Keys())
	if err != nil {
		log.Fatal("failed to open prediction ledger", zap.Error(err))
	}
	defer led.Close()
	log.Info("prediction ledger ready", zap.String("path", config.Database.Path))

	gateway := alert.NewGateway(buildTransports(config, log),
		time.Duration(config.Alert.TimeoutSeconds)*time.Second, log)

	orc, err := predict.New(registry, predict.Config{
		CacheSize:   config.Inference.CacheSize,
		ScaleInputs: config.Inference.ScaleInputs,
	}, log)
	if err != nil {
		log.Fatal("failed to build orchestrator", zap.Error(err))
	}

	feed := httpapi.NewFeed(log)
	go feed.Run()

	handlers := httpapi.NewHandlers(orc, led, gateway, registry.Models(), feed, log)

	serverCfg := httpapi.DefaultServerConfig()
	if config.Http.Port != 0 {
		serverCfg.Port = config.Http.Port
	}
	if config.Http.TimeoutSeconds > 0 {
		serverCfg.Timeout = time.Duration(config.Http.TimeoutSeconds) * time.Second
	}
	if len(config.Http.AllowedOrigins) > 0 {
		serverCfg.AllowedOrigins = config.Http.AllowedOrigins
	}

	server := httpapi.NewServer(serverCfg, handlers, log)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	if err := server.Stop(); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	feed.Stop()
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func buildTransports(config *Config, log *zap.Logger) []alert.Transport {
	var transports []alert.Transport

	if config.Alert.Smtp.Host != "" && config.Alert.Recipient != "" {
		password := os.Getenv(config.Alert.Smtp.PasswordEnv)
		if password == "" {
			log.Warn("smtp transport disabled: password env not set",
				zap.String("env", config.Alert.Smtp.PasswordEnv))
		} else {
			transports = append(transports, alert.NewMailer(
				config.Alert.Smtp.Host,
				config.Alert.Smtp.Port,
				config.Alert.Smtp.From,
				password,
				config.Alert.Recipient))
		}
	}
	if config.Alert.Webhook.URL != "" {
		transports = append(transports, alert.NewWebhook(config.Alert.Webhook.URL))
	}
	if len(transports) == 0 {
		log.Warn("no alert transport configured; severe predictions will only be logged")
	}
	return transports
}
