package main

import (
	"log"
	"sync"
)

////////////////////////////////////////////////////////////////////////////////
// Transaction Pool (메모리풀)
// ----------------------------------------------------------------------------
// - 채굴 대기 중인 트랜잭션의 무제한 FIFO 큐
// - enqueue 순서가 곧 채굴 배치 순서 (머클루트가 순서에 민감하므로 보존 필수)
// - "pending_" 키공간에 복제해 재시작 시 미채굴 트랜잭션을 복구함
//   (채굴된 항목은 블록이 durable하게 저장된 뒤에만 삭제)
// TODO: 채굴이 적재 속도를 못 따라갈 때의 상한/배압 정책 (풀 크기 무제한)
////////////////////////////////////////////////////////////////////////////////

type pendingTx struct {
	seq int
	tx  Transaction
}

type TxPool struct {
	mu    sync.Mutex
	items []pendingTx
	store *Storage
}

// 풀 생성 + DB의 미채굴 트랜잭션 복구
func newTxPool(store *Storage) (*TxPool, error) {
	p := &TxPool{store: store}
	seqs, txs, err := store.loadPending()
	if err != nil {
		return nil, err
	}
	for i := range txs {
		p.items = append(p.items, pendingTx{seq: seqs[i], tx: txs[i]})
	}
	if len(txs) > 0 {
		log.Printf("[POOL] Restored %d pending transactions from DB", len(txs))
	}
	return p, nil
}

// 트랜잭션 적재 (무제한)
func (p *TxPool) enqueue(tx Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	seq := p.store.nextPendingSeq()
	if err := p.store.putPending(seq, tx); err != nil {
		return err
	}
	p.items = append(p.items, pendingTx{seq: seq, tx: tx})
	log.Printf("[POOL] Enqueued %s tx (patient=%s, pending=%d)", tx.Type, tx.PatientID, len(p.items))
	return nil
}

// 오래된 순으로 최대 maxSize개를 꺼냄 (상대 순서 유지)
// 반환된 seq는 블록 확정 후 deletePending에 사용
func (p *TxPool) drainBatch(maxSize int) ([]int, []Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.items)
	if n == 0 {
		return nil, nil
	}
	if maxSize > 0 && n > maxSize {
		n = maxSize
	}

	seqs := make([]int, n)
	txs := make([]Transaction, n)
	for i := 0; i < n; i++ {
		seqs[i] = p.items[i].seq
		txs[i] = p.items[i].tx
	}
	p.items = p.items[n:]
	log.Printf("[POOL] Drained batch of %d (remaining=%d)", n, len(p.items))
	return seqs, txs
}

// 채굴 실패 시 배치를 앞쪽에 되돌림 (순서 보존)
func (p *TxPool) requeueFront(seqs []int, txs []Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	restored := make([]pendingTx, 0, len(txs)+len(p.items))
	for i := range txs {
		restored = append(restored, pendingTx{seq: seqs[i], tx: txs[i]})
	}
	p.items = append(restored, p.items...)
	log.Printf("[POOL] Requeued %d transactions after failed seal", len(txs))
}

func (p *TxPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *TxPool) isEmpty() bool {
	return p.size() == 0
}
