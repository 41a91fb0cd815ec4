package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != "8000" {
		t.Errorf("Port = %s", cfg.Server.Port)
	}
	if cfg.Sandbox.DefaultTimeoutMs != 5000 {
		t.Errorf("DefaultTimeoutMs = %d", cfg.Sandbox.DefaultTimeoutMs)
	}
	if cfg.Sandbox.MaxTimeoutMs != 300000 {
		t.Errorf("MaxTimeoutMs = %d", cfg.Sandbox.MaxTimeoutMs)
	}
	if cfg.Sandbox.MemoryLimitMB != 128 {
		t.Errorf("MemoryLimitMB = %d", cfg.Sandbox.MemoryLimitMB)
	}
	if cfg.Sandbox.PoolCapacity != 5 {
		t.Errorf("PoolCapacity = %d", cfg.Sandbox.PoolCapacity)
	}
	if cfg.Sandbox.PoolRecycleThreshold != 100 {
		t.Errorf("PoolRecycleThreshold = %d", cfg.Sandbox.PoolRecycleThreshold)
	}
}

func TestLoadUsesEnvironment(t *testing.T) {
	t.Setenv("DEFAULT_TIMEOUT_MS", "2500")
	t.Setenv("POOL_CAPACITY", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sandbox.DefaultTimeoutMs != 2500 {
		t.Errorf("DefaultTimeoutMs = %d", cfg.Sandbox.DefaultTimeoutMs)
	}
	if cfg.Sandbox.PoolCapacity != 9 {
		t.Errorf("PoolCapacity = %d", cfg.Sandbox.PoolCapacity)
	}
}
