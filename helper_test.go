package main

import (
	"testing"
)

// 테스트용 서비스 조립: 임시 LevelDB + 난이도 1 (빠른 PoW)
func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg := defaultConfig()
	cfg.NodeID = "test-node"
	cfg.DBPath = t.TempDir()
	cfg.AuditLogPath = ""
	cfg.Difficulty = 1
	cfg.BatchMax = 10
	cfg.MineIntervalSec = 3600 // 워처는 테스트에서 수동 채굴로 대체

	store, err := openStorage(cfg.DBPath, cfg.AuditLogPath)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(store.close)

	svc, err := newService(cfg, store, newStaticPeerSet(cfg.PeerIDs))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
