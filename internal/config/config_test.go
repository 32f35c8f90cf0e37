package config

import (
	"testing"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	t.Setenv("LADDER_SEASON", "50")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_SeasonRequired(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("LADDER_SEASON", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without LADDER_SEASON")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("LADDER_SEASON", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ResetGameBudget != 9*time.Minute {
		t.Fatalf("unexpected default reset game budget: %s", cfg.ResetGameBudget)
	}
	if cfg.MatchWindow != 60*time.Minute {
		t.Fatalf("unexpected default match window: %s", cfg.MatchWindow)
	}
	if cfg.StateTTL != 720*time.Hour {
		t.Fatalf("unexpected default state ttl: %s", cfg.StateTTL)
	}
	if cfg.PrimaryQueue != ladder.Queue1v1 {
		t.Fatalf("unexpected default primary queue: %d", cfg.PrimaryQueue)
	}
	if len(cfg.Regions) != 4 {
		t.Fatalf("unexpected default regions: %+v", cfg.Regions)
	}
	if cfg.FeedDir != "./feed" {
		t.Fatalf("unexpected default feed dir: %q", cfg.FeedDir)
	}
}

func TestLoad_RegionParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("LADDER_SEASON", "50")

	t.Run("trims and deduplicates", func(t *testing.T) {
		t.Setenv("LADDER_REGIONS", " eu, KR ,eu ")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if len(cfg.Regions) != 2 || cfg.Regions[0] != ladder.RegionEU || cfg.Regions[1] != ladder.RegionKR {
			t.Fatalf("unexpected regions: %+v", cfg.Regions)
		}
	})

	t.Run("unknown region", func(t *testing.T) {
		t.Setenv("LADDER_REGIONS", "EU,SEA")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for unknown region")
		}
	})
}

func TestLoad_DurationValidation(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("LADDER_SEASON", "50")

	t.Run("invalid duration", func(t *testing.T) {
		t.Setenv("LADDER_RESET_GAME_BUDGET", "soon")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for invalid LADDER_RESET_GAME_BUDGET")
		}
	})

	t.Run("non-positive duration", func(t *testing.T) {
		t.Setenv("LADDER_RESET_GAME_BUDGET", "-1m")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for negative LADDER_RESET_GAME_BUDGET")
		}
	})
}

func TestLoad_PyroscopeRequiresServerAddressWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("LADDER_SEASON", "50")
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when PYROSCOPE_ENABLED=true without PYROSCOPE_SERVER_ADDRESS")
	}
}

func TestLoad_PyroscopeAppNameDefaultsToServiceName(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("LADDER_SEASON", "50")
	t.Setenv("APP_SERVICE_NAME", "laddercore-worker-test")
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "http://localhost:4040")
	t.Setenv("PYROSCOPE_APP_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PyroscopeAppName != "laddercore-worker-test" {
		t.Fatalf("unexpected pyroscope app name: %q", cfg.PyroscopeAppName)
	}
}

func TestLoad_WorkerCountValidation(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("LADDER_SEASON", "50")
	t.Setenv("CYCLE_WORKERS", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for CYCLE_WORKERS=0")
	}
}
