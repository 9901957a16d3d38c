package main

import (
	"fmt"
	"log"
	"sync"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// Ledger (해시 연결 장부)
// ----------------------------------------------------------------------------
// - 제네시스에서 tip까지 단일 체인, 블록은 봉인 후 불변/삭제 불가
// - append는 prev_hash 연동과 PoW 재검증을 통과해야만 tip이 됨
// - "마지막 블록 로드 -> 새 블록 검증/저장" 시퀀스는 chainMu로 직렬화
//   (LevelDB 자체는 동시 호출 가능하지만 tip 경쟁을 막아야 함)
////////////////////////////////////////////////////////////////////////////////

type Ledger struct {
	store         *Storage
	chainMu       sync.Mutex
	lastBlockTime time.Time
}

// 장부 초기화 및 제네시스 확인
func newLedger(store *Storage, nodeID string, difficulty int) (*Ledger, error) {
	l := &Ledger{store: store}

	// 제네시스 블록 존재 여부 확인
	genesis, err := store.getBlockByIndex(0)
	if err != nil {
		// 없으면 채굴 후 저장
		log.Printf("[INIT] No genesis. Mining genesis...")
		genesis = mineGenesisBlock(nodeID, difficulty)
		if err := store.saveBlock(genesis); err != nil {
			return nil, fmt.Errorf("save genesis block: %w", err)
		}
		if err := store.setLatestHeight(0); err != nil {
			return nil, fmt.Errorf("set genesis height: %w", err)
		}
		if err := store.putMeta("meta_node_id", nodeID); err != nil {
			return nil, fmt.Errorf("meta node_id: %w", err)
		}
		l.lastBlockTime = time.Now()
		log.Printf("[INIT] Genesis appended (hash=%.12s)", genesis.BlockHash)
		return l, nil
	}

	// 제네시스가 있으면 높이 메타 복구만 확인
	if _, ok := store.latestHeight(); !ok {
		h := 0
		for {
			if _, err := store.getBlockByIndex(h); err != nil {
				break
			}
			h++
		}
		_ = store.setLatestHeight(h - 1)
	}
	l.lastBlockTime = time.Now()
	log.Printf("[INIT] Existing chain loaded (genesis=%.12s)", genesis.BlockHash)
	return l, nil
}

// 현재 tip 블록
func (l *Ledger) tip() (Block, error) {
	h, ok := l.store.latestHeight()
	if !ok {
		return Block{}, fmt.Errorf("height meta missing: %w", ErrNotFound)
	}
	return l.store.getBlockByIndex(h)
}

// 봉인된 블록 검증 후 장부에 추가
// 실패 시 tip은 변경되지 않음 (해당 append만 실패, 프로세스는 계속)
func (l *Ledger) appendBlock(b Block) error {
	l.chainMu.Lock()
	defer l.chainMu.Unlock()

	prev, err := l.tip()
	if err != nil {
		return err
	}

	// 1) 인덱스 연속성
	if b.Index != prev.Index+1 {
		return fmt.Errorf("%w: index not consecutive (prev=%d new=%d)", ErrChainIntegrity, prev.Index, b.Index)
	}
	// 2) 이전 해시 연동
	if b.PrevHash != prev.BlockHash {
		return fmt.Errorf("%w: prev_hash mismatch (want=%s got=%s)", ErrChainIntegrity, prev.BlockHash, b.PrevHash)
	}
	// 3) MerkleRoot 재계산
	leaf := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		leaf[i] = hashTransaction(tx)
	}
	if merkleRootHex(leaf) != b.MerkleRoot {
		return fmt.Errorf("%w: merkle_root mismatch", ErrChainIntegrity)
	}
	// 4) BlockHash 재계산 + PoW 난이도 조건
	if b.computeHash() != b.BlockHash {
		return fmt.Errorf("%w: block_hash mismatch", ErrChainIntegrity)
	}
	if !validHash(b.BlockHash, b.Difficulty) {
		return fmt.Errorf("%w: insufficient proof-of-work (difficulty=%d)", ErrChainIntegrity, b.Difficulty)
	}

	// 저장 & 메타 갱신
	if err := l.store.saveBlock(b); err != nil {
		return fmt.Errorf("save block: %w", err)
	}
	if err := l.store.setLatestHeight(b.Index); err != nil {
		return fmt.Errorf("set height: %w", err)
	}
	l.lastBlockTime = time.Now()
	log.Printf("[CHAIN] Accepted New Block #%d (%.12s)", b.Index, b.BlockHash)
	return nil
}

// 봉인된 블록 중 해당 레코드 해시의 트랜잭션 존재 여부
func (l *Ledger) containsTransaction(recordHash string) bool {
	_, ok := l.store.blockIndexOfTransaction(recordHash)
	return ok
}

// 레코드 해시가 포함된 블록 조회
func (l *Ledger) blockOfTransaction(recordHash string) (Block, bool) {
	idx, ok := l.store.blockIndexOfTransaction(recordHash)
	if !ok {
		return Block{}, false
	}
	b, err := l.store.getBlockByIndex(idx)
	if err != nil {
		return Block{}, false
	}
	return b, true
}

// 장부 통계
func (l *Ledger) stats() LedgerStats {
	h, ok := l.store.latestHeight()
	if !ok {
		return LedgerStats{}
	}
	return LedgerStats{
		BlockCount:       h + 1,
		TransactionCount: l.store.transactionCount(),
		SizeEstimate:     l.store.sizeEstimate(),
		LastBlockTime:    l.lastBlockTime.Format(time.RFC3339),
	}
}

// offset에서 최대 limit개 반환, total(=height+1)도 함께 반환
func (l *Ledger) listBlocksPaginated(offset, limit int) ([]Block, int, error) {
	if offset < 0 || limit <= 0 {
		return nil, 0, fmt.Errorf("invalid offset/limit")
	}
	h, ok := l.store.latestHeight()
	if !ok {
		return nil, 0, fmt.Errorf("no chain: %w", ErrNotFound)
	}
	total := h + 1
	if offset >= total {
		return []Block{}, total, nil
	}
	end := offset + limit - 1
	if end > h {
		end = h
	}
	out := make([]Block, 0, end-offset+1)
	for i := offset; i <= end; i++ {
		b, err := l.store.getBlockByIndex(i)
		if err != nil {
			return nil, total, fmt.Errorf("load block_%d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, total, nil
}
