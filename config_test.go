package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.NodeID != "med-node-01" || cfg.Difficulty != 3 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	yaml := "node_id: file-node\ndifficulty: 2\nbatch_max: 5\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// 환경변수가 파일값보다 우선해야 함
	t.Setenv("MEDCHAIN_NODE_ID", "env-node")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.NodeID != "env-node" {
		t.Fatalf("node_id = %q, want env-node", cfg.NodeID)
	}
	if cfg.Difficulty != 2 || cfg.BatchMax != 5 {
		t.Fatalf("yaml values not merged: %+v", cfg)
	}
	// 파일이 건드리지 않은 필드는 기본값 유지
	if cfg.ConfirmationReq != 3 {
		t.Fatalf("confirmation_req = %d, want default 3", cfg.ConfirmationReq)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(path, []byte("difficulty: 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatalf("difficulty 0 should be rejected")
	}
}
