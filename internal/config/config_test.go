package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("Load(\"\") = %+v, want defaults %+v", cfg, DefaultConfig())
	}
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	const body = "page_size: 8192\ncheckpoint_interval: 1m\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PageSize != 8192 {
		t.Fatalf("PageSize = %d, want 8192", cfg.PageSize)
	}
	if cfg.CheckpointInterval != time.Minute {
		t.Fatalf("CheckpointInterval = %v, want 1m", cfg.CheckpointInterval)
	}
	if cfg.BufferFrames != DefaultConfig().BufferFrames {
		t.Fatalf("BufferFrames = %d, want default %d", cfg.BufferFrames, DefaultConfig().BufferFrames)
	}
}
