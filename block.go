package main

import (
	"log"
	"strings"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// Block (장부 블록 구조)
// ------------------------------------------------------------
// 하나의 블록은 여러 Transaction을 포함하고,
// 그 해시들을 기반으로 Merkle Root를 계산하여 블록 헤더에 저장.
// 봉인(PoW 성공) 이후 불변이며 Miner에 의해서만 생성됨.
////////////////////////////////////////////////////////////////////////////////

// Block : 해시 연결 장부의 블록 구조체
// --------------------------------------------------
// - BlockHash = sha256(index ‖ timestamp ‖ prev_hash ‖ merkle_root ‖ nonce)
// - BlockHash는 Difficulty 개 이상의 '0' hex 문자로 시작해야 함
// - 제네시스(index=0)의 PrevHash는 "0"
type Block struct {
	Index        int           `json:"index"`        // 블록 번호
	Timestamp    string        `json:"timestamp"`    // 생성 시간 (RFC3339)
	Transactions []Transaction `json:"transactions"` // 블록 내 트랜잭션 목록 (풀 순서 보존)
	PrevHash     string        `json:"prev_hash"`    // 이전 블록의 해시
	MerkleRoot   string        `json:"merkle_root"`  // Transactions 해시 기반 Merkle Root
	Nonce        int           `json:"nonce"`        // PoW 성공 시점의 Nonce
	Difficulty   int           `json:"difficulty"`   // 난이도 (ex: 4 => "0000"으로 시작)
	BlockHash    string        `json:"block_hash"`   // 최종 블록 해시 (헤더 기준)
}

// 제네시스 상수
const (
	genesisTimestamp = "1970-01-01T00:00:00Z" // 재현성 보장
	genesisPrevHash  = "0"
)

// 블록 헤더 기준 해시 계산
// 포함: Index, Timestamp, PrevHash, MerkleRoot, Nonce
// 제외: Transactions, Difficulty, BlockHash (자가참조 및 가변 대용량 데이터 배제)
func (b Block) computeHash() string {
	hdr := struct {
		Index      int    `json:"index"`
		Timestamp  string `json:"timestamp"`
		PrevHash   string `json:"prev_hash"`
		MerkleRoot string `json:"merkle_root"`
		Nonce      int    `json:"nonce"`
	}{
		Index:      b.Index,
		Timestamp:  b.Timestamp,
		PrevHash:   b.PrevHash,
		MerkleRoot: b.MerkleRoot,
		Nonce:      b.Nonce,
	}
	return sha256Hex(jsonCanonical(hdr))
}

// 제네시스 블록 채굴
// 제네시스는 genesis 트랜잭션 1건을 포함하고 난이도 조건을 동일하게 만족해야 함
func mineGenesisBlock(nodeID string, difficulty int) Block {
	log.Printf("[PoW] Mining genesis block (difficulty=%d)...", difficulty)

	genesisTx := Transaction{
		ID:        "genesis-" + nodeID,
		Type:      TxGenesis,
		Timestamp: genesisTimestamp,
	}
	root := merkleRootHex([]string{hashTransaction(genesisTx)})

	genesis := Block{
		Index:        0,
		Timestamp:    genesisTimestamp,
		Transactions: []Transaction{genesisTx},
		PrevHash:     genesisPrevHash,
		MerkleRoot:   root,
		Difficulty:   difficulty,
	}

	// === 제네시스 Nonce 탐색 ===
	mineStart := time.Now()
	nonce := 0
	for {
		genesis.Nonce = nonce
		hash := genesis.computeHash()
		if validHash(hash, difficulty) {
			genesis.BlockHash = hash
			break
		}
		nonce++
	}
	log.Printf("[PoW] GENESIS mined: nonce=%d hash=%s elapsed=%.2fs",
		genesis.Nonce, genesis.BlockHash, time.Since(mineStart).Seconds())
	return genesis
}

// 주어진 난이도 조건 검사
func validHash(hash string, difficulty int) bool {
	prefix := strings.Repeat("0", difficulty)
	return strings.HasPrefix(hash, prefix)
}
