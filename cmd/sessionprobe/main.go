// Command sessionprobe exercises a sessionkit Manager against a live
// authentication backend: it restores or establishes a session, reports the
// token's remaining validity, forces a refresh, and dumps the metric
// counters. Useful for smoke-testing a backend's auth endpoints and for
// inspecting what a client persists.
//
// Configuration is read from flags, a config file (--config), and
// SESSIONPROBE_* environment variables, in ascending precedence of
// env > file > defaults.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	sessionkit "github.com/portalkit/sessionkit"
	"github.com/portalkit/sessionkit/api"
	"github.com/portalkit/sessionkit/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional config file (yaml)")
		login      = flag.Bool("login", false, "log in with the configured credentials instead of relying on a restored session")
		logout     = flag.Bool("logout", false, "clear the persisted session and exit")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	v := viper.New()
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("storage", "file")
	v.SetDefault("storage_path", defaultStoragePath())
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_prefix", "sessionprobe")
	v.SetDefault("refresh_margin", "5m")
	v.SetEnvPrefix("SESSIONPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if *configPath != "" {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			logger.Error("read config", "error", err)
			os.Exit(2)
		}
	}

	margin, err := time.ParseDuration(v.GetString("refresh_margin"))
	if err != nil {
		logger.Error("parse refresh_margin", "error", err)
		os.Exit(2)
	}

	sessionStore, err := buildStore(v)
	if err != nil {
		logger.Error("build store", "error", err)
		os.Exit(2)
	}

	client, err := api.New(api.Config{
		BaseURL:   v.GetString("base_url"),
		UserAgent: "sessionprobe",
	})
	if err != nil {
		logger.Error("build api client", "error", err)
		os.Exit(2)
	}

	cfg := sessionkit.Config{
		Token: sessionkit.TokenConfig{RefreshMargin: margin},
		Audit: sessionkit.AuditConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: sessionkit.MetricsConfig{Enabled: true},
	}

	manager, err := sessionkit.New().
		WithConfig(cfg).
		WithAPI(client).
		WithStore(sessionStore).
		WithAuditSink(sessionkit.NewJSONWriterSink(os.Stderr)).
		Build()
	if err != nil {
		logger.Error("build manager", "error", err)
		os.Exit(2)
	}
	defer manager.Close()

	ctx := context.Background()

	if *logout {
		if err := manager.Logout(ctx); err != nil {
			logger.Error("logout", "error", err)
			os.Exit(1)
		}
		logger.Info("session cleared")
		return
	}

	if *login || !manager.IsAuthenticated() {
		email := v.GetString("email")
		password := v.GetString("password")
		if email == "" || password == "" {
			logger.Error("no restored session and no credentials configured",
				"hint", "set SESSIONPROBE_EMAIL and SESSIONPROBE_PASSWORD or pass --config")
			os.Exit(2)
		}
		result, err := manager.Login(ctx, email, password)
		if err != nil {
			logger.Error("login", "error", err)
			os.Exit(1)
		}
		if !result.OK {
			logger.Error("login rejected", "code", string(result.Code), "message", result.Message)
			os.Exit(1)
		}
		logger.Info("logged in", "user_id", result.User.ID, "email", result.User.Email)
	} else {
		logger.Info("session restored", "user_id", manager.CurrentUser().ID)
	}

	logger.Info("session state",
		"authenticated", manager.IsAuthenticated(),
		"admin", manager.IsAdmin(),
		"super_admin", manager.IsSuperAdmin(),
		"token_remaining", manager.TokenTimeRemaining().String(),
	)

	refreshed, err := manager.RefreshAccessToken(ctx)
	if err != nil {
		logger.Warn("refresh", "error", err)
	} else {
		logger.Info("refreshed", "token_remaining", manager.TokenTimeRemaining().String(), "token_len", len(refreshed))
	}

	snapshot := manager.MetricsSnapshot()
	for id, value := range snapshot.Counters {
		if value > 0 {
			fmt.Fprintf(os.Stdout, "metric[%d] = %d\n", id, value)
		}
	}
}

func buildStore(v *viper.Viper) (store.Store, error) {
	switch v.GetString("storage") {
	case "file":
		return store.NewFileStore(v.GetString("storage_path"))
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: v.GetString("redis_addr")})
		return store.NewRedisStore(client, v.GetString("redis_prefix"))
	case "memory":
		return store.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", v.GetString("storage"))
	}
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sessionprobe.json"
	}
	return home + "/.sessionprobe.json"
}
