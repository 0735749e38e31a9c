package config

import (
	"strings"
	"testing"
	"time"
)

func setPostgresEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("STORE", "postgres")
	t.Setenv("DB_CONN", "postgres://localhost/bank")
	t.Setenv("CARD_ENCRYPTION_KEY", strings.Repeat("0f", 32))
	t.Setenv("CARD_HMAC_SECRET", "hmac")
}

func TestNewConfigDefaults(t *testing.T) {
	setPostgresEnv(t)

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Port != "8080" || cfg.AMQPExchange != "card-ledger" || cfg.DigestSchedule != "0 9 * * *" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TransferRejectBlocked || cfg.DigestEnabled() {
		t.Fatalf("optional features must default off: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("shutdown timeout=%s", cfg.ShutdownTimeout)
	}
}

func TestNewConfigOverrides(t *testing.T) {
	setPostgresEnv(t)
	t.Setenv("TRANSFER_REJECT_BLOCKED", "true")
	t.Setenv("ADMIN_EMAILS", "a@bank.test, b@bank.test,,")
	t.Setenv("READ_TIMEOUT", "3s")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if !cfg.TransferRejectBlocked {
		t.Fatal("TRANSFER_REJECT_BLOCKED ignored")
	}
	if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[1] != "b@bank.test" {
		t.Fatalf("admin emails=%v", cfg.AdminEmails)
	}
	if cfg.ReadTimeout != 3*time.Second {
		t.Fatalf("read timeout=%s", cfg.ReadTimeout)
	}
}

func TestNewConfigMemoryStoreNeedsNoKeys(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("STORE", "memory")
	t.Setenv("CARD_ENCRYPTION_KEY", "")
	t.Setenv("CARD_HMAC_SECRET", "")

	if _, err := NewConfig(); err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
}

func TestNewConfigErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing jwt secret": {"JWT_SECRET": ""},
		"unknown store":      {"STORE": "mongo"},
		"short key":          {"CARD_ENCRYPTION_KEY": "abcd"},
		"missing hmac":       {"CARD_HMAC_SECRET": ""},
		"bad bool":           {"TRANSFER_REJECT_BLOCKED": "maybe"},
		"bad duration":       {"WRITE_TIMEOUT": "soon"},
		"bad schedule":       {"ADMIN_EMAILS": "a@bank.test", "DIGEST_SCHEDULE": "every day"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setPostgresEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := NewConfig(); err == nil {
				t.Fatal("want error")
			}
		})
	}
}
