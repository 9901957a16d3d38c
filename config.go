package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

////////////////////////////////////////////////////////////////////////////////
// Config
// ------------------------------------------------------------
// YAML 파일(-config) + 환경변수 override. 환경변수가 항상 우선.
// 테스트는 파일 없이 defaultConfig()를 직접 조정해 사용함.
////////////////////////////////////////////////////////////////////////////////

type Config struct {
	NodeID       string `yaml:"node_id"`        // 노드 식별자
	DBPath       string `yaml:"db_path"`        // LevelDB 경로
	ListenAddr   string `yaml:"listen_addr"`    // HTTP 수신 주소 (":5000")
	AuditLogPath string `yaml:"audit_log_path"` // 블록 이력 감사 파일 ("" 비활성)

	Difficulty      int      `yaml:"difficulty"`        // PoW 난이도 (선행 0 hex 개수)
	MineIntervalSec int      `yaml:"mine_interval_sec"` // 채굴 워처 주기 (초)
	BatchMax        int      `yaml:"batch_max"`         // 블록당 최대 트랜잭션 수
	ConfirmationReq int      `yaml:"confirmation_req"`  // consensus 정족수
	PeerIDs         []string `yaml:"peer_ids"`          // 고정 피어 로스터
}

func defaultConfig() Config {
	return Config{
		NodeID:          "med-node-01",
		DBPath:          "medchain_db",
		ListenAddr:      ":5000",
		AuditLogPath:    "block_history.txt",
		Difficulty:      3,
		MineIntervalSec: 120,
		BatchMax:        10,
		ConfirmationReq: 3,
		PeerIDs:         []string{"hosp-node-01", "hosp-node-02", "hosp-node-03", "hosp-node-04"},
	}
}

// 설정 로드: 파일이 없으면 기본값, 있으면 YAML 병합, 마지막에 env override
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config load: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config parse: %w", err)
		}
	}

	cfg.NodeID = getEnvDefault("MEDCHAIN_NODE_ID", cfg.NodeID)
	cfg.DBPath = getEnvDefault("MEDCHAIN_DB_PATH", cfg.DBPath)
	cfg.ListenAddr = getEnvDefault("MEDCHAIN_LISTEN_ADDR", cfg.ListenAddr)
	cfg.AuditLogPath = getEnvDefault("MEDCHAIN_AUDIT_LOG", cfg.AuditLogPath)
	cfg.Difficulty = getEnvInt("MEDCHAIN_DIFFICULTY", cfg.Difficulty)
	cfg.MineIntervalSec = getEnvInt("MEDCHAIN_MINE_INTERVAL_SEC", cfg.MineIntervalSec)
	cfg.BatchMax = getEnvInt("MEDCHAIN_BATCH_MAX", cfg.BatchMax)
	cfg.ConfirmationReq = getEnvInt("MEDCHAIN_CONFIRMATION_REQ", cfg.ConfirmationReq)

	if cfg.Difficulty < 1 {
		return cfg, fmt.Errorf("config: difficulty must be >= 1")
	}
	if cfg.BatchMax < 1 {
		return cfg, fmt.Errorf("config: batch_max must be >= 1")
	}
	return cfg, nil
}

func getEnvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
