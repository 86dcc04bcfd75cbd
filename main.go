package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"flikz/api"
	"flikz/config"
	"flikz/handlers"
	"flikz/services/catalog"
	"flikz/services/geo"
	"flikz/services/metadata"
	"flikz/services/preferences"
	"flikz/services/scheduler"
	"flikz/services/wikipedia"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"
)

// clientRetention matches the lifetime of the client cookie.
const clientRetention = 365 * 24 * time.Hour

func main() {
	configFlag := flag.String("config", "", "path to settings.json (defaults to $FLIKZ_CONFIG or cache/settings.json)")
	portOverride := flag.Int("port", 0, "override server port from config")
	envFile := flag.String("env", ".env", "optional KEY=VALUE file loaded before reading the environment")
	flag.Parse()

	fmt.Println("🎬 flikz starting...")

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Printf("Warning: could not read %s: %v", *envFile, err)
	}

	// Determine config path (flag, env or default)
	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv("FLIKZ_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}
	config.ApplyEnv(&settings)
	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}
	if err := settings.Validate(); err != nil {
		log.Fatalf("invalid settings (%s): %v", configPath, err)
	}

	setupLogging(settings.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Services
	metadataService := metadata.NewService(metadata.Config{
		APIKey:          settings.Metadata.TMDBAPIKey,
		Token:           settings.Metadata.TMDBToken,
		Language:        settings.Metadata.Language,
		CacheDir:        settings.Cache.Directory,
		TTLHours:        settings.Cache.MetadataTTLHours,
		CastLimit:       settings.Metadata.CastLimit,
		RequestInterval: time.Duration(settings.Metadata.RequestIntervalMS) * time.Millisecond,
		Biographies:     wikipedia.NewClient(nil),
	})

	var provider geo.Provider
	if strings.TrimSpace(settings.Geo.IPInfoURL) != "" {
		provider = geo.NewIPInfoProvider(nil, settings.Geo.IPInfoURL, settings.Geo.IPInfoToken, 10)
	}
	geoService := geo.NewService(geo.Config{
		Provider:       provider,
		NominatimURL:   settings.Geo.NominatimURL,
		DefaultCountry: settings.Geo.DefaultCountry,
		CacheSize:      settings.Geo.CacheSize,
		CacheTTL:       time.Duration(settings.Geo.CacheTTLMinutes) * time.Minute,
	})

	prefStore, err := preferences.OpenStore(ctx, settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open preferences database %s: %v", settings.Database.Path, err)
	}
	defer prefStore.Close()
	preferencesService := preferences.NewService(prefStore)

	feeds := catalog.NewStore(
		metadataService,
		settings.Catalog.MaxSessions,
		time.Duration(settings.Catalog.SessionTTLMinutes)*time.Minute,
		settings.Catalog.MaxPages,
	)

	tasks := scheduler.NewService(time.Minute,
		scheduler.Task{
			ID:       "prune-clients",
			Name:     "Prune client preferences",
			Interval: 6 * time.Hour,
			Run: func(ctx context.Context) (int, error) {
				removed, err := prefStore.Prune(ctx, time.Now().Add(-clientRetention))
				return int(removed), err
			},
		},
		scheduler.Task{
			ID:       "sweep-metadata-cache",
			Name:     "Sweep expired TMDB responses",
			Interval: time.Duration(max(settings.Cache.MetadataTTLHours, 1)) * time.Hour,
			Run:      metadataService.SweepCache,
		},
	)
	tasks.Start(ctx)

	// Handlers
	locale := &handlers.Locale{Geo: geoService, Prefs: preferencesService}
	metadataHandler := handlers.NewMetadataHandler(metadataService, locale, settings.Catalog.HomeRowSize)
	catalogHandler := handlers.NewCatalogHandler(feeds, metadataService, locale)
	preferencesHandler := handlers.NewPreferencesHandler(locale)
	imageHandler := handlers.NewImageHandler(settings.Cache.Directory)
	cacheHandler := handlers.NewCacheHandler(metadataService, imageHandler)
	tasksHandler := handlers.NewScheduledTasksHandler(tasks)
	pageHandler, err := handlers.NewPageHandler(metadataService, locale, settings.Server.Brand, settings.Catalog.HomeRowSize)
	if err != nil {
		log.Fatalf("failed to load page templates: %v", err)
	}

	r := mux.NewRouter()
	rateLimit := 0
	if settings.RateLimit.Enabled {
		rateLimit = settings.RateLimit.RequestsPerMinute
	}
	api.Register(r, api.Options{RequestsPerMinute: rateLimit, AllowedOrigins: settings.Server.AllowedOrigins},
		metadataHandler, catalogHandler, preferencesHandler, imageHandler, cacheHandler, tasksHandler, pageHandler)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "config", configPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	tasks.Stop(shutdownCtx)

	log.Println("✅ Shutdown complete")
}

// setupLogging sends the standard logger and slog to stdout and, when
// configured, a rotating log file.
func setupLogging(cfg config.LogConfig) {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		logDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}
			out = io.MultiWriter(os.Stdout, fileWriter)
		}
	}
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	if cfg.File != "" {
		slog.Info("logging to file", "file", cfg.File, "level", level.String())
	}
}
