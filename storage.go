package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

////////////////////////////////////////////////////////////////////////////////
// LevelDB Storage
// ----------------------------------------------------------------------------
// 4개 논리 테이블을 단일 키공간에 저장
// - 블록    : "block_<Index>" / "blkhash_<BlockHash>" => Block JSON
// - 레코드  : "rec_<Hash>" => MedicalRecord JSON
//             "patseq_<PatientID>_<Version %08d>" => 레코드 해시 (환자 체인 순서 색인)
//             "pattip_<PatientID>" => 최신 레코드 해시, "patver_<PatientID>" => 최신 버전
// - 권한    : "perm_<ID>" => AccessPermission JSON
//             "permidx_<PatientID>|<GranteeID>|<ID>" => ID (쌍 기반 조회 색인)
// - 풀 복제 : "pending_<seq %012d>" => Transaction JSON (재시작 복구용)
// - 투표    : "vote_<BlockHash>_<NodeID>" => ConsensusVote JSON
// - 메타    : height_latest, txcount, meta_node_id, meta_node_privkey/pubkey, meta_box_key
////////////////////////////////////////////////////////////////////////////////

type Storage struct {
	db           *leveldb.DB
	auditLogPath string // 블록 이력 감사 파일 (best-effort)
}

// openStorage : LevelDB 열기 (main.go / 테스트에서 호출)
func openStorage(path, auditLogPath string) (*Storage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	log.Println("[DB] LevelDB initialized at", path)
	return &Storage{db: db, auditLogPath: auditLogPath}, nil
}

// close : LevelDB 닫기 (종료 시 호출)
func (s *Storage) close() {
	if s.db != nil {
		s.db.Close()
		log.Println("[DB] Closed LevelDB")
	}
}

// ---- 내부 메타키 헬퍼 ---------------------------------------------------------

func (s *Storage) putMeta(key, val string) error {
	return s.db.Put([]byte(key), []byte(val), nil)
}

func (s *Storage) getMeta(key string) (string, bool) {
	v, err := s.db.Get([]byte(key), nil)
	if err != nil {
		return "", false
	}
	return string(v), true
}

func (s *Storage) getMetaInt(key string) (int, bool) {
	if v, ok := s.getMeta(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

func (s *Storage) latestHeight() (int, bool) {
	return s.getMetaInt("height_latest")
}

func (s *Storage) setLatestHeight(h int) error {
	return s.putMeta("height_latest", strconv.Itoa(h))
}

////////////////////////////////////////////////////////////////////////////////
// 블록 저장/조회
////////////////////////////////////////////////////////////////////////////////

// saveBlock : Block 전체를 JSON으로 저장
// - Key1: "block_<Index>"      => Block JSON (번호 기반 접근)
// - Key2: "blkhash_<BlockHash>" => Block JSON (해시 기반 접근)
// 트랜잭션 색인("txptr_")과 누적 카운트도 같이 갱신함
func (s *Storage) saveBlock(block Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}

	// 블록 번호 기반 저장
	keyByIndex := fmt.Sprintf("block_%d", block.Index)
	if err := s.db.Put([]byte(keyByIndex), data, nil); err != nil {
		return err
	}

	// 블록 해시 기반 저장
	keyByHash := fmt.Sprintf("blkhash_%s", block.BlockHash)
	if err := s.db.Put([]byte(keyByHash), data, nil); err != nil {
		return err
	}

	// 트랜잭션 색인: "txptr_<RecordHash>" -> 블록 번호
	for _, tx := range block.Transactions {
		if tx.RecordHash == "" {
			continue
		}
		key := fmt.Sprintf("txptr_%s", tx.RecordHash)
		if err := s.db.Put([]byte(key), []byte(strconv.Itoa(block.Index)), nil); err != nil {
			return err
		}
	}

	// 누적 트랜잭션 수 갱신
	cnt, _ := s.getMetaInt("txcount")
	if err := s.putMeta("txcount", strconv.Itoa(cnt+len(block.Transactions))); err != nil {
		return err
	}

	log.Printf("[DB] Block #%d saved (Hash=%.12s, txs=%d)", block.Index, block.BlockHash, len(block.Transactions))
	s.appendBlockLog(block)
	return nil
}

// 인덱스로 블록 조회
func (s *Storage) getBlockByIndex(index int) (Block, error) {
	key := fmt.Sprintf("block_%d", index)
	data, err := s.db.Get([]byte(key), nil)
	if err != nil {
		return Block{}, fmt.Errorf("block #%d: %w", index, ErrNotFound)
	}
	var block Block
	if err := json.Unmarshal(data, &block); err != nil {
		return Block{}, err
	}
	return block, nil
}

// 블록 해시로 조회
func (s *Storage) getBlockByHash(hash string) (Block, error) {
	key := fmt.Sprintf("blkhash_%s", hash)
	data, err := s.db.Get([]byte(key), nil)
	if err != nil {
		return Block{}, fmt.Errorf("block %s: %w", hash, ErrNotFound)
	}
	var block Block
	if err := json.Unmarshal(data, &block); err != nil {
		return Block{}, err
	}
	return block, nil
}

// 레코드 해시가 포함된 블록 번호 조회 ("txptr_" 색인)
func (s *Storage) blockIndexOfTransaction(recordHash string) (int, bool) {
	v, err := s.db.Get([]byte("txptr_"+recordHash), nil)
	if err != nil {
		return 0, false
	}
	idx, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, false
	}
	return idx, true
}

func (s *Storage) transactionCount() int {
	cnt, _ := s.getMetaInt("txcount")
	return cnt
}

// 대략 크기 추정 (정밀할 필요 X) : 블록 키공간 값 길이 합
func (s *Storage) sizeEstimate() int {
	total := 0
	iter := s.db.NewIterator(util.BytesPrefix([]byte("block_")), nil)
	for iter.Next() {
		total += len(iter.Value())
	}
	iter.Release()
	return total
}

////////////////////////////////////////////////////////////////////////////////
// 레코드 저장/조회 (환자별 체인 색인 포함)
////////////////////////////////////////////////////////////////////////////////

// saveRecord : MedicalRecord 저장 + 환자 체인 포인터 갱신
// 호출자는 환자 단위 잠금 하에서 호출해야 함 (체인 연속성 보장)
func (s *Storage) saveRecord(rec MedicalRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.db.Put([]byte("rec_"+rec.Hash), data, nil); err != nil {
		return err
	}
	// 환자 체인 순서 색인 (버전 기반)
	seqKey := fmt.Sprintf("patseq_%s_%08d", rec.PatientID, rec.Version)
	if err := s.db.Put([]byte(seqKey), []byte(rec.Hash), nil); err != nil {
		return err
	}
	// 체인 tip / 최신 버전 갱신
	if err := s.putMeta("pattip_"+rec.PatientID, rec.Hash); err != nil {
		return err
	}
	if err := s.putMeta("patver_"+rec.PatientID, strconv.Itoa(rec.Version)); err != nil {
		return err
	}
	log.Printf("[DB] Record saved (patient=%s v%d hash=%.12s)", rec.PatientID, rec.Version, rec.Hash)
	return nil
}

// 손상 주입 테스트 등에서 사용: 해시 재계산 없이 레코드 원문 덮어쓰기
func (s *Storage) overwriteRecord(rec MedicalRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Put([]byte("rec_"+rec.Hash), data, nil)
}

func (s *Storage) getRecordByHash(hash string) (MedicalRecord, bool) {
	data, err := s.db.Get([]byte("rec_"+hash), nil)
	if err != nil {
		return MedicalRecord{}, false
	}
	var rec MedicalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return MedicalRecord{}, false
	}
	return rec, true
}

// 환자의 최신 레코드 해시 (없으면 "")
func (s *Storage) patientTip(patientID string) string {
	if v, ok := s.getMeta("pattip_" + patientID); ok {
		return v
	}
	return ""
}

// 환자의 최신 버전 번호 (없으면 0)
func (s *Storage) patientVersion(patientID string) int {
	v, _ := s.getMetaInt("patver_" + patientID)
	return v
}

// 환자 이력 조회 (생성순, 오래된 것 먼저)
// patseq 색인이 버전 zero-pad 키이므로 LevelDB 순회 순서가 곧 생성 순서임
func (s *Storage) patientHistory(patientID string) ([]MedicalRecord, error) {
	prefix := []byte(fmt.Sprintf("patseq_%s_", patientID))
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	out := []MedicalRecord{}
	for iter.Next() {
		hash := string(iter.Value())
		rec, ok := s.getRecordByHash(hash)
		if !ok {
			return nil, fmt.Errorf("record %s referenced by index: %w", hash, ErrNotFound)
		}
		out = append(out, rec)
	}
	return out, iter.Error()
}

////////////////////////////////////////////////////////////////////////////////
// 권한 저장/조회
////////////////////////////////////////////////////////////////////////////////

func (s *Storage) savePermission(p AccessPermission) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.db.Put([]byte("perm_"+p.ID), data, nil); err != nil {
		return err
	}
	// 환자-피부여자 쌍 기반 조회 색인
	idxKey := fmt.Sprintf("permidx_%s|%s|%s", p.PatientID, p.GranteeID, p.ID)
	return s.db.Put([]byte(idxKey), []byte(p.ID), nil)
}

func (s *Storage) getPermission(id string) (AccessPermission, bool) {
	data, err := s.db.Get([]byte("perm_"+id), nil)
	if err != nil {
		return AccessPermission{}, false
	}
	var p AccessPermission
	if err := json.Unmarshal(data, &p); err != nil {
		return AccessPermission{}, false
	}
	return p, true
}

// 환자-피부여자 쌍의 모든 권한 조회 (만료 판정은 호출자 책임)
func (s *Storage) permissionsFor(patientID, granteeID string) ([]AccessPermission, error) {
	prefix := []byte(fmt.Sprintf("permidx_%s|%s|", patientID, granteeID))
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	out := []AccessPermission{}
	for iter.Next() {
		p, ok := s.getPermission(string(iter.Value()))
		if !ok {
			continue
		}
		out = append(out, p)
	}
	return out, iter.Error()
}

////////////////////////////////////////////////////////////////////////////////
// 풀 복제 (pendingTransactions 테이블)
// - 채굴 전 트랜잭션 유실 방지용. 메모리풀과 같은 순서(seq 오름차순)를 유지함
////////////////////////////////////////////////////////////////////////////////

func (s *Storage) nextPendingSeq() int {
	n, _ := s.getMetaInt("pending_seq")
	s.putMeta("pending_seq", strconv.Itoa(n+1))
	return n
}

func (s *Storage) putPending(seq int, tx Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(fmt.Sprintf("pending_%012d", seq)), data, nil)
}

func (s *Storage) deletePending(seqs []int) {
	for _, seq := range seqs {
		if err := s.db.Delete([]byte(fmt.Sprintf("pending_%012d", seq)), nil); err != nil {
			log.Printf("[DB] delete pending %d failed: %v", seq, err)
		}
	}
}

// 재시작 시 미채굴 트랜잭션 복구 (seq 오름차순)
func (s *Storage) loadPending() ([]int, []Transaction, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte("pending_")), nil)
	defer iter.Release()

	var seqs []int
	var txs []Transaction
	for iter.Next() {
		var seq int
		if _, err := fmt.Sscanf(string(iter.Key()), "pending_%d", &seq); err != nil {
			continue
		}
		var tx Transaction
		if err := json.Unmarshal(iter.Value(), &tx); err != nil {
			continue
		}
		seqs = append(seqs, seq)
		txs = append(txs, tx)
	}
	return seqs, txs, iter.Error()
}

////////////////////////////////////////////////////////////////////////////////
// 합의 투표 저장/조회
////////////////////////////////////////////////////////////////////////////////

func (s *Storage) saveVote(v ConsensusVote) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("vote_%s_%s", v.BlockHash, v.NodeID)
	return s.db.Put([]byte(key), data, nil)
}

func (s *Storage) votesFor(blockHash string) []ConsensusVote {
	prefix := []byte(fmt.Sprintf("vote_%s_", blockHash))
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	out := []ConsensusVote{}
	for iter.Next() {
		var v ConsensusVote
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

////////////////////////////////////////////////////////////////////////////////
// 감사 로그 (notification/audit sink, best-effort)
////////////////////////////////////////////////////////////////////////////////

func (s *Storage) appendBlockLog(block Block) {
	if s.auditLogPath == "" {
		return
	}
	f, err := os.OpenFile(s.auditLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[LOG][ERROR] cannot open blockHistory file: %v", err)
		return
	}
	defer f.Close()
	line := fmt.Sprintf("Block #%02d, Txs : %d, Timestamp : %s \n", block.Index, len(block.Transactions), block.Timestamp)
	if _, err := f.WriteString(line); err != nil {
		log.Printf("[LOG][ERROR] cannot write blockHistory: %v", err)
	}
}
