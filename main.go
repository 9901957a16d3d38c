// main.go
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	// 1) 설정 로드 (YAML + 환경변수 override)
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal("[START] config error: ", err)
	}

	color.Cyan("medchain — tamper-evident medical record ledger")
	color.Yellow("node=%s db=%s listen=%s difficulty=%d", cfg.NodeID, cfg.DBPath, cfg.ListenAddr, cfg.Difficulty)

	// 2) DB 초기화
	store, err := openStorage(cfg.DBPath, cfg.AuditLogPath)
	if err != nil {
		log.Fatal("[START] storage error: ", err)
	}
	defer store.close()

	// 3) 서비스 조립 (제네시스 자동 생성/복구, 풀 복구 포함)
	peers := newStaticPeerSet(cfg.PeerIDs)
	svc, err := newService(cfg, store, peers)
	if err != nil {
		log.Fatal("[START] service init error: ", err)
	}
	log.Printf("[START] Ledger ready (node=%s)", cfg.NodeID)

	// 4) 채굴 워처 기동 (풀이 비어있지 않을 때만 주기 채굴)
	svc.startMiningWatcher()

	// 5) HTTP 라우팅 등록 및 서버 시작
	mux := http.NewServeMux()
	registerAPI(mux, svc)
	go func() {
		log.Println("[START] NODE Running on", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.Fatal(err)
		}
	}()

	// 6) 종료 신호 대기 후 정리 (진행 중 채굴은 양보 지점에서 중단됨)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	color.Red("shutting down...")
	svc.close()
}
