package main

import (
	"errors"
	"strings"
	"testing"
)

func TestGenesisBlockDifficultyOne(t *testing.T) {
	genesis := mineGenesisBlock("test-node", 1)

	if genesis.Index != 0 {
		t.Fatalf("genesis index = %d, want 0", genesis.Index)
	}
	if genesis.PrevHash != "0" {
		t.Fatalf("genesis prev_hash = %q, want \"0\"", genesis.PrevHash)
	}
	if len(genesis.Transactions) != 1 || genesis.Transactions[0].Type != TxGenesis {
		t.Fatalf("genesis must carry exactly one genesis transaction, got %+v", genesis.Transactions)
	}
	if !strings.HasPrefix(genesis.BlockHash, "0") {
		t.Fatalf("genesis hash %q does not start with '0'", genesis.BlockHash)
	}
	if genesis.computeHash() != genesis.BlockHash {
		t.Fatalf("genesis hash does not match recomputed header hash")
	}
}

func TestMineBlockSealsValidBlock(t *testing.T) {
	prev := mineGenesisBlock("test-node", 1)
	txs := []Transaction{
		{ID: "t1", Type: TxCreate, PatientID: "P1", RecordHash: "r1", Timestamp: "2026-01-01T00:00:00Z"},
		{ID: "t2", Type: TxUpdate, PatientID: "P1", RecordHash: "r2", PrevRecordHash: "r1", Timestamp: "2026-01-01T00:01:00Z"},
	}

	blk, err := mineBlock(prev, txs, 1, nil)
	if err != nil {
		t.Fatalf("mineBlock: %v", err)
	}
	if blk.Index != prev.Index+1 {
		t.Fatalf("index = %d, want %d", blk.Index, prev.Index+1)
	}
	if blk.PrevHash != prev.BlockHash {
		t.Fatalf("prev_hash not linked to previous block")
	}
	if !validHash(blk.BlockHash, blk.Difficulty) {
		t.Fatalf("sealed hash %q fails difficulty %d", blk.BlockHash, blk.Difficulty)
	}
	if blk.computeHash() != blk.BlockHash {
		t.Fatalf("sealed hash does not match recomputed header hash")
	}

	// 배치 순서 보존 확인
	leaf := []string{hashTransaction(txs[0]), hashTransaction(txs[1])}
	if merkleRootHex(leaf) != blk.MerkleRoot {
		t.Fatalf("merkle root does not match ordered batch")
	}
}

func TestMineBlockCancellation(t *testing.T) {
	prev := mineGenesisBlock("test-node", 1)
	cancel := make(chan struct{})
	close(cancel)

	// 난이도 8은 양보 지점 도달 전에 우연히 봉인될 확률이 사실상 0
	txs := []Transaction{{ID: "t1", Type: TxCreate, RecordHash: "r1"}}
	_, err := mineBlock(prev, txs, 8, cancel)
	if !errors.Is(err, errMiningCancelled) {
		t.Fatalf("expected errMiningCancelled, got %v", err)
	}
}

func TestValidHash(t *testing.T) {
	if !validHash("00ab", 2) {
		t.Fatalf("00ab should satisfy difficulty 2")
	}
	if validHash("0ab0", 2) {
		t.Fatalf("0ab0 should not satisfy difficulty 2")
	}
}
