package main

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

////////////////////////////////////////////////////////////////////////////////
// Record Store (환자별 해시체인)
// ----------------------------------------------------------------------------
// - 생성/갱신은 항상 새 버전을 추가함 (append-only, 덮어쓰기 없음)
// - record[n].PrevHash == record[n-1].Hash, record[0].PrevHash == ""
// - 같은 환자에 대한 동시 생성이 같은 tip을 읽지 못하도록 환자 단위 잠금
//   (풀 잠금만으로는 체인 불변식이 깨질 수 있음)
////////////////////////////////////////////////////////////////////////////////

type RecordStore struct {
	store  *Storage
	pool   *TxPool
	signer *Signer
	box    *PayloadBox
	access *AccessRegistry

	mu        sync.Mutex
	patientMu map[string]*sync.Mutex
}

func newRecordStore(store *Storage, pool *TxPool, signer *Signer, box *PayloadBox, access *AccessRegistry) *RecordStore {
	return &RecordStore{
		store:     store,
		pool:      pool,
		signer:    signer,
		box:       box,
		access:    access,
		patientMu: make(map[string]*sync.Mutex),
	}
}

// 환자 단위 잠금 객체 획득
func (rs *RecordStore) lockFor(patientID string) *sync.Mutex {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	m, ok := rs.patientMu[patientID]
	if !ok {
		m = &sync.Mutex{}
		rs.patientMu[patientID] = m
	}
	return m
}

// 신규 레코드 버전 생성
// 암호화 -> 해시 -> 체인 연결 -> 저장 -> 서명 트랜잭션 적재, 순으로 진행하고
// 새 레코드 해시를 반환함. 첫 버전이면 create, 이후는 update 트랜잭션.
func (rs *RecordStore) createRecord(patientID, recordType string, payload []byte, accessLevel int) (string, error) {
	if patientID == "" {
		return "", fmt.Errorf("%w: empty patient id", ErrRecordValidation)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrRecordValidation)
	}
	if accessLevel < AccessBasic || accessLevel > AccessFull {
		return "", fmt.Errorf("%w: invalid access level %d", ErrRecordValidation, accessLevel)
	}

	// 환자 체인 쓰기 직렬화
	lock := rs.lockFor(patientID)
	lock.Lock()
	defer lock.Unlock()

	encoded, err := rs.box.seal(patientID, payload)
	if err != nil {
		return "", fmt.Errorf("seal payload: %w", err)
	}

	prevHash := rs.store.patientTip(patientID)
	version := rs.store.patientVersion(patientID) + 1
	now := time.Now().Format(time.RFC3339)

	rec := MedicalRecord{
		ID:             uuid.New().String(),
		PatientID:      patientID,
		RecordType:     recordType,
		EncodedPayload: encoded,
		Hash:           sha256Hex([]byte(encoded)),
		PrevHash:       prevHash,
		Timestamp:      now,
		Version:        version,
		AccessLevel:    accessLevel,
	}
	if err := rs.store.saveRecord(rec); err != nil {
		return "", fmt.Errorf("save record: %w", err)
	}

	txType := TxCreate
	if version > 1 {
		txType = TxUpdate
	}
	if err := rs.emitTx(txType, patientID, rec.Hash, prevHash, now); err != nil {
		return "", err
	}

	log.Printf("[RECORD] %s record for patient=%s v%d (hash=%.12s)", txType, patientID, version, rec.Hash)
	return rec.Hash, nil
}

// 의뢰 연계 파생 레코드: 기존 이력이 있는 환자에게만 새 버전을 추가
func (rs *RecordStore) createDerivedRecord(patientID, recordType string, payload []byte, accessLevel int) (string, error) {
	if rs.store.patientTip(patientID) == "" {
		return "", fmt.Errorf("%w: no base record for patient %s", ErrRecordValidation, patientID)
	}
	return rs.createRecord(patientID, recordType, payload, accessLevel)
}

// 환자 이력 조회 (생성순, 오래된 것 먼저; 없으면 빈 시퀀스)
func (rs *RecordStore) getPatientHistory(patientID string) ([]MedicalRecord, error) {
	return rs.store.patientHistory(patientID)
}

// 권한 확인 후 페이로드 복호화
func (rs *RecordStore) getDecryptedPayload(recordHash, requesterID string) ([]byte, error) {
	rec, ok := rs.store.getRecordByHash(recordHash)
	if !ok {
		return nil, fmt.Errorf("record %s: %w", recordHash, ErrNotFound)
	}
	if !rs.access.hasAccess(rec.PatientID, requesterID, rec.AccessLevel) {
		return nil, fmt.Errorf("%w: %s has no level-%d access to patient %s",
			ErrUnauthorizedAccess, requesterID, rec.AccessLevel, rec.PatientID)
	}
	return rs.box.open(rec.PatientID, rec.EncodedPayload)
}

// 서명된 트랜잭션 생성 후 풀에 적재
func (rs *RecordStore) emitTx(txType, patientID, recordHash, prevRecordHash, ts string) error {
	sig, err := rs.signer.sign(recordHash, ts)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	tx := Transaction{
		ID:             uuid.New().String(),
		Type:           txType,
		PatientID:      patientID,
		RecordHash:     recordHash,
		PrevRecordHash: prevRecordHash,
		Timestamp:      ts,
		Signature:      sig,
		PublicKey:      rs.signer.publicKeyPEM(),
	}
	return rs.pool.enqueue(tx)
}
