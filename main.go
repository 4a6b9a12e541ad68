package main

import (
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"inferd/db"
	apihttp "inferd/http"
	"inferd/logging"
	"inferd/ml"
	"inferd/monitoring"
	"inferd/serving"
)

type Config struct {
	Http struct {
		Port  int  `yaml:"port"`
		Debug bool `yaml:"debug"`
	} `yaml:"http"`
	Model struct {
		Path  string `yaml:"path"`
		Watch bool   `yaml:"watch"`
	} `yaml:"model"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Log logging.Config `yaml:"log"`
}

func defaultConfig() *Config {
	config := &Config{}
	config.Http.Port = 5000
	config.Model.Path = "./model/forest.json"
	config.Model.Watch = true
	config.Database.Path = "./data/inferd.db"
	config.Cache.Size = 1024
	config.Log.Level = "info"
	return config
}

func main() {
	// 1. Load config; a missing file means defaults
	config, err := loadConfig("config.yaml")
	if err != nil {
		if !os.IsNotExist(err) {
			os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
			os.Exit(1)
		}
		config = defaultConfig()
	}

	logger := logging.New(config.Log, config.Http.Debug)
	defer logger.Sync()

	// 2. Open the prediction audit store; serving works without it
	var store *db.Store
	if config.Database.Path != "" {
		if err := os.MkdirAll(filepath.Dir(config.Database.Path), 0o755); err != nil {
			logger.Warn("audit store unavailable", zap.Error(err))
		} else if store, err = db.Open(config.Database.Path); err != nil {
			logger.Warn("audit store unavailable", zap.Error(err))
		}
	}

	// 3. Load the model artifact; a failed load leaves the wrapper unloaded
	// and prediction endpoints return 503 until a reload succeeds
	wrapper := ml.NewWrapper(config.Model.Path, logger)

	// 4. Start the monitoring hub
	hub := monitoring.NewHub(logger)
	hub.Start()

	// 5. Build the prediction service
	svcCfg := serving.ServiceConfig{
		CacheSize: config.Cache.Size,
		Events:    hub,
		Logger:    logger,
	}
	if store != nil {
		svcCfg.Store = store
	}
	svc := serving.NewService(wrapper, svcCfg)
	_ = wrapper.Load()

	// 6. Watch the artifact for hot reloads
	var watcher *ml.Watcher
	if config.Model.Watch {
		watcher, err = ml.NewWatcher(wrapper, logger)
		if err != nil {
			logger.Warn("model watcher unavailable", zap.Error(err))
		} else if err := watcher.Start(); err != nil {
			logger.Warn("model watcher failed to start", zap.Error(err))
			watcher.Stop()
			watcher = nil
		}
	}

	// 7. Start HTTP server
	serverCfg := apihttp.DefaultServerConfig()
	if config.Http.Port > 0 {
		serverCfg.Port = config.Http.Port
	}
	handler := apihttp.NewHandler(svc, store, hub, logger)
	server := apihttp.NewServer(serverCfg, handler, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 8. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	if watcher != nil {
		watcher.Stop()
	}
	hub.Stop()
	if store != nil {
		store.Close()
	}
	logger.Info("exiting")
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := defaultConfig()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}
	return config, nil
}
