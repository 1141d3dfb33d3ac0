package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/ogurasousui/basex-empresa/internal/platform/config"
)

func TestBuildPoolConfig(t *testing.T) {
	t.Parallel()

	dbCfg := config.JournalConfig{
		Enabled:         true,
		Host:            "localhost",
		Port:            15432,
		User:            "user",
		Password:        "pass",
		Name:            "journal",
		SSLMode:         "disable",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}

	poolCfg, err := BuildPoolConfig(dbCfg)
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}

	if poolCfg.MaxConns != 20 {
		t.Errorf("expected MaxConns 20, got %d", poolCfg.MaxConns)
	}
	if poolCfg.MinConns != 5 {
		t.Errorf("expected MinConns 5, got %d", poolCfg.MinConns)
	}
	if poolCfg.MaxConnLifetime != 30*time.Minute {
		t.Errorf("unexpected MaxConnLifetime: %v", poolCfg.MaxConnLifetime)
	}
	if poolCfg.MaxConnIdleTime != 10*time.Minute {
		t.Errorf("unexpected MaxConnIdleTime: %v", poolCfg.MaxConnIdleTime)
	}
	if poolCfg.ConnConfig.Database != "journal" {
		t.Errorf("expected database journal, got %s", poolCfg.ConnConfig.Database)
	}
	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != ApplicationName {
		t.Errorf("unexpected application_name %q", got)
	}
}

func TestBuildPoolConfig_Disabled(t *testing.T) {
	t.Parallel()

	if _, err := BuildPoolConfig(config.JournalConfig{}); !errors.Is(err, ErrJournalDisabled) {
		t.Fatalf("expected ErrJournalDisabled, got %v", err)
	}
}
