package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BANK_CONFIG", t.TempDir()+"/missing.yaml")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 8082 || cfg.App.ServiceName != "customer-service" {
		t.Fatalf("unexpected app config %+v", cfg.App)
	}
	if strings.Join(cfg.Branch.Candidates, ",") != "BR001,BR002,BR003,BR004,BR005" {
		t.Fatalf("unexpected candidates %v", cfg.Branch.Candidates)
	}
	if cfg.Branch.Timeout != 2*time.Second || cfg.Branch.CacheTTL != 5*time.Minute {
		t.Fatalf("unexpected branch config %+v", cfg.Branch)
	}
	if cfg.Kafka.ConsumerGroup != "customer-service" {
		t.Fatalf("unexpected consumer group %s", cfg.Kafka.ConsumerGroup)
	}
}

func TestLoadBranchOverrides(t *testing.T) {
	t.Setenv("BANK_CONFIG", t.TempDir()+"/missing.yaml")
	t.Setenv("BRANCH_CANDIDATES", "BR010, BR020")
	t.Setenv("BRANCH_DIRECTORY_URL", "http://branches.internal:8080")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Branch.Candidates) != 2 || cfg.Branch.Candidates[1] != "BR020" {
		t.Fatalf("unexpected candidates %v", cfg.Branch.Candidates)
	}

	t.Setenv("BRANCH_CANDIDATES", "BR010,main")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid candidate to fail")
	}
}

func TestLoadRequiresDirectoryOutsideDev(t *testing.T) {
	t.Setenv("BANK_CONFIG", t.TempDir()+"/missing.yaml")
	t.Setenv("BANK_ENV", "prod")
	t.Setenv("JWT_SECRET", "s3cret")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing BRANCH_DIRECTORY_URL to fail")
	}
	t.Setenv("BRANCH_DIRECTORY_URL", "not a url")
	if _, err := Load(); err == nil {
		t.Fatalf("expected relative url to fail")
	}
}
