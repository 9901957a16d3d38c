package main

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// Service (장부 코어 조립)
// ----------------------------------------------------------------------------
// 프로세스 전역 싱글톤 대신 생성자 주입 서비스 객체로 구성함.
// Ledger / TxPool / RecordStore / AccessRegistry / Verifier를 보유하고,
// 주변 애플리케이션에 노출되는 연산 표면을 제공함.
//
// 동시성 모델:
// - 쓰기(레코드 생성, 권한 변경, 블록 봉인)는 각 구조의 뮤텍스로 직렬화
// - 읽기(검증, 이력, 통계)는 잠금 없이 진행 가능 (봉인된 블록/레코드는 불변)
// - 채굴은 isMining CAS로 동시에 1건만 수행
////////////////////////////////////////////////////////////////////////////////

type Service struct {
	cfg    Config
	store  *Storage
	ledger *Ledger
	pool   *TxPool
	rec    *RecordStore
	access *AccessRegistry
	verify *Verifier
	peers  PeerClient

	isMining atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// 서비스 조립: 키/마스터키 준비 -> 제네시스 확인 -> 풀 복구 -> 각 컴포넌트 결선
func newService(cfg Config, store *Storage, peers PeerClient) (*Service, error) {
	signer, err := newSigner(store)
	if err != nil {
		return nil, fmt.Errorf("init signer: %w", err)
	}
	box, err := newPayloadBox(store)
	if err != nil {
		return nil, fmt.Errorf("init payload box: %w", err)
	}
	ledger, err := newLedger(store, cfg.NodeID, cfg.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	pool, err := newTxPool(store)
	if err != nil {
		return nil, fmt.Errorf("init pool: %w", err)
	}

	access := newAccessRegistry(store, pool, signer)
	svc := &Service{
		cfg:    cfg,
		store:  store,
		ledger: ledger,
		pool:   pool,
		rec:    newRecordStore(store, pool, signer, box, access),
		access: access,
		verify: newVerifier(store, ledger, cfg.ConfirmationReq),
		peers:  peers,
		stopCh: make(chan struct{}),
	}

	// 제네시스 투표 보충 (기동 시 1회, best-effort)
	if tip, err := ledger.tip(); err == nil {
		collectVotes(store, peers, tip.BlockHash)
	}
	return svc, nil
}

////////////////////////////////////////////////////////////////////////////////
// 연산 표면 (주변 애플리케이션 노출)
////////////////////////////////////////////////////////////////////////////////

func (s *Service) createPatientRecord(patientID, recordType string, payload []byte, accessLevel int) (string, error) {
	return s.rec.createRecord(patientID, recordType, payload, accessLevel)
}

// 의뢰 연계 파생 레코드 (기존 이력 필수)
func (s *Service) addDerivedRecord(patientID, recordType string, payload []byte, accessLevel int) (string, error) {
	return s.rec.createDerivedRecord(patientID, recordType, payload, accessLevel)
}

func (s *Service) verifyRecord(recordHash string) (VerificationResult, error) {
	return s.verify.verifyRecord(recordHash)
}

func (s *Service) grantAccess(patientID, granteeID string, level int, duration time.Duration, grantedBy, purpose string) (string, error) {
	return s.access.grant(patientID, granteeID, level, duration, grantedBy, purpose)
}

func (s *Service) revokeAccess(permissionID string) error {
	return s.access.revoke(permissionID)
}

func (s *Service) getPatientRecordHistory(patientID string) ([]MedicalRecord, error) {
	return s.rec.getPatientHistory(patientID)
}

func (s *Service) getDecryptedPayload(recordHash, requesterID string) ([]byte, error) {
	return s.rec.getDecryptedPayload(recordHash, requesterID)
}

func (s *Service) getLedgerStats() LedgerStats {
	return s.ledger.stats()
}

// 피어 투표 재동기화 (비치명적: 실패해도 로그 후 다음 주기 재시도)
func (s *Service) syncWithPeers() (int, error) {
	n, err := syncVotes(s.store, s.peers)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrPeerSync, err)
	}
	return n, nil
}

////////////////////////////////////////////////////////////////////////////////
// 채굴 (워처 + 단발 수행)
////////////////////////////////////////////////////////////////////////////////

var errMiningBusy = errors.New("mining already in progress")

// 채굴되지 않은 pending을 감시해서 주기마다 채굴하는 watcher
func (s *Service) startMiningWatcher() {
	interval := time.Duration(s.cfg.MineIntervalSec) * time.Second
	t := time.NewTicker(interval)
	log.Printf("[WATCHER] Mining Watcher Started (interval=%s)", interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-s.stopCh:
				log.Printf("[WATCHER] Mining Watcher Stopped")
				return
			case <-t.C:
				// 이미 채굴 중이거나 메모리풀이 비었으면 아무것도 안함
				if s.isMining.Load() || s.pool.isEmpty() {
					continue
				}
				if _, err := s.mineOnce(); err != nil && !errors.Is(err, errMiningBusy) {
					log.Printf("[WATCHER] mining pass failed: %v", err)
				}
			}
		}
	}()
}

// 풀에서 배치를 꺼내 PoW로 봉인하고 장부에 추가 (동시 1건)
// 블록은 nonce 탐색이 완전히 성공한 뒤에만 원자적으로 append됨
func (s *Service) mineOnce() (Block, error) {
	// CAS: mining 시작 시점 보호
	if !s.isMining.CompareAndSwap(false, true) {
		return Block{}, errMiningBusy
	}
	defer s.isMining.Store(false)

	seqs, txs := s.pool.drainBatch(s.cfg.BatchMax)
	if len(txs) == 0 {
		return Block{}, fmt.Errorf("no pending transactions")
	}

	prev, err := s.ledger.tip()
	if err != nil {
		s.pool.requeueFront(seqs, txs)
		return Block{}, err
	}

	blk, err := mineBlock(prev, txs, s.cfg.Difficulty, s.stopCh)
	if err != nil {
		// 취소 시 배치를 되돌려 장부/풀 일관성 유지
		s.pool.requeueFront(seqs, txs)
		return Block{}, err
	}
	if err := s.ledger.appendBlock(blk); err != nil {
		s.pool.requeueFront(seqs, txs)
		return Block{}, err
	}

	// 블록 확정 후에만 pending 복제본 삭제
	s.store.deletePending(seqs)

	// 피어 투표 수집 (best-effort)
	collectVotes(s.store, s.peers, blk.BlockHash)
	return blk, nil
}

// 워처 중단 + 진행 중인 nonce 탐색을 양보 지점에서 중단
func (s *Service) close() {
	close(s.stopCh)
	s.wg.Wait()
}
