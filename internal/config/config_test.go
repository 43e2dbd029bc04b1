package config

import (
	"testing"
	"time"

	"ativosaber/internal/rates"
)

func TestIndexRatesFromEnv(t *testing.T) {
	got := indexRatesFromEnv([]string{
		"PATH=/usr/bin",
		"INDEX_RATE_CDI=0.1065",
		"INDEX_RATE_ipca= 0.045 ",
		"INDEX_RATE_SELIC=abc",
		"INDEX_RATE_=0.2",
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 overrides, got %v", got)
	}
	if got[rates.IndexCDI].String() != "0.1065" {
		t.Errorf("expected CDI 0.1065, got %s", got[rates.IndexCDI])
	}
	if got[rates.IndexIPCA].String() != "0.045" {
		t.Errorf("expected IPCA 0.045, got %s", got[rates.IndexIPCA])
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CACHE_TTL", "")
	t.Setenv("JWT_EXPIRES_IN", "bogus")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("INDEX_RATE_CDI", "0.11")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("expected default cache TTL, got %s", cfg.CacheTTL)
	}
	if cfg.JWTExpirationDur != 15*time.Minute {
		t.Errorf("expected fallback JWT expiry, got %s", cfg.JWTExpirationDur)
	}
	if cfg.RedisDB != 2 {
		t.Errorf("expected redis db 2, got %d", cfg.RedisDB)
	}

	table := cfg.RateTable()
	if table.RateFor(rates.IndexCDI).String() != "0.11" {
		t.Errorf("expected overridden CDI, got %s", table.RateFor(rates.IndexCDI))
	}
	if table.RateFor(rates.IndexSELIC).String() != "0.12" {
		t.Errorf("expected default SELIC, got %s", table.RateFor(rates.IndexSELIC))
	}
}
