package main

import (
	"errors"
	"log"
	"runtime"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// PoW (Proof of Work) 모듈
// ------------------------------------------------------------
// - 풀에서 가져온 배치의 머클루트를 계산하고 nonce를 0부터 증가 탐색
// - 블록 해시가 난이도 개수 이상의 '0' hex 문자로 시작하면 봉인
// - 탐색은 원칙적으로 무제한이지만 yieldEvery 회마다 스케줄러에 양보하고
//   그 시점에서만 취소 신호를 확인함 (취소 시 장부는 변경되지 않음)
////////////////////////////////////////////////////////////////////////////////

// nonce 탐색 중 취소 확인/양보 간격
const yieldEvery = 1000

var errMiningCancelled = errors.New("mining cancelled")

// PoW 채굴 수행
// 배치 순서를 그대로 보존한 블록을 봉인하여 반환
func mineBlock(prev Block, txs []Transaction, difficulty int, cancel <-chan struct{}) (Block, error) {
	mineStart := time.Now()

	leaf := make([]string, len(txs))
	for i, tx := range txs {
		leaf[i] = hashTransaction(tx)
	}

	nb := Block{
		Index:        prev.Index + 1,
		Timestamp:    time.Now().Format(time.RFC3339),
		Transactions: txs,
		PrevHash:     prev.BlockHash,
		MerkleRoot:   merkleRootHex(leaf),
		Difficulty:   difficulty,
	}

	log.Printf("[PoW] Starting mining (index=%d txs=%d prev=%.8s...)", nb.Index, len(txs), nb.PrevHash)

	// Nonce 탐색
	nonce := 0
	for {
		nb.Nonce = nonce
		hash := nb.computeHash()
		if validHash(hash, difficulty) {
			nb.BlockHash = hash
			log.Printf("[PoW] Sealed block #%d nonce=%d hash=%.12s elapsed=%.2fs",
				nb.Index, nonce, hash, time.Since(mineStart).Seconds())
			return nb, nil
		}
		nonce++

		// 협조적 양보 지점: 취소 확인 후 스케줄러에 제어 양보
		if nonce%yieldEvery == 0 {
			select {
			case <-cancel:
				log.Printf("[PoW] Mining aborted at nonce=%d (index=%d)", nonce, nb.Index)
				return Block{}, errMiningCancelled
			default:
			}
			runtime.Gosched()
		}
	}
}
