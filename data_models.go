package main

import "time"

////////////////////////////////////////////////////////////////////////////////
// Data Models (데이터 스키마)
//
// 의료의뢰 시스템의 장부 코어에 필요한 최소 데이터 구조 정의
// - Transaction        : 장부에 기록되는 단위 연산 (생성/갱신/권한부여/회수)
// - MedicalRecord      : 환자별 해시체인으로 연결되는 의료기록 버전
// - AccessPermission   : 기간 제한/레벨 기반 접근 권한
// - NetworkNode        : 피어 노드 식별 정보
// - ConsensusVote      : 블록 해시에 대한 피어의 찬반 투표
// - VerificationResult : 5개 축 무결성 검증 결과
////////////////////////////////////////////////////////////////////////////////

////////////////////////////////////////////////////////////////////////////////
// 1. Transaction
// ------------------------------------------------------------
// 레코드 생성/갱신 및 권한 변경 시 생성되어 메모리풀에 적재되고,
// 채굴 시 블록에 포함됨. 블록에 포함된 사본이 정본이 되고 풀의 사본은 폐기.
// 생성 이후 불변.
////////////////////////////////////////////////////////////////////////////////

// 트랜잭션 타입 상수
const (
	TxGenesis = "genesis"
	TxCreate  = "create"
	TxUpdate  = "update"
	TxAccess  = "access"
	TxRevoke  = "revoke"
)

type Transaction struct {
	ID             string `json:"id"`               // 고유 ID (uuid)
	Type           string `json:"type"`             // genesis|create|update|access|revoke
	PatientID      string `json:"patient_id"`       // 대상 환자
	RecordHash     string `json:"record_hash"`      // 대상 레코드(또는 권한 스냅샷) 해시
	PrevRecordHash string `json:"prev_record_hash"` // 환자 체인에서의 직전 레코드 해시
	Timestamp      string `json:"timestamp"`        // 생성 시각 (RFC3339)
	Signature      string `json:"signature"`        // ECDSA 서명 (hex DER)
	PublicKey      string `json:"public_key"`       // 서명 검증용 공개키 (PEM)
}

////////////////////////////////////////////////////////////////////////////////
// 2. MedicalRecord
// ------------------------------------------------------------
// 환자별 forward 해시체인의 한 버전.
// - Hash = sha256(EncodedPayload)
// - PrevHash = 같은 환자의 직전 버전 Hash (첫 버전이면 "")
// - 갱신은 기존 버전을 덮어쓰지 않고 새 버전을 추가함 (append-only)
////////////////////////////////////////////////////////////////////////////////

type MedicalRecord struct {
	ID             string `json:"id"`              // 고유 ID (uuid)
	PatientID      string `json:"patient_id"`      // 환자 식별자
	RecordType     string `json:"record_type"`     // 기록 유형 (진단, 처방, 의뢰 등)
	EncodedPayload string `json:"encoded_payload"` // AEAD 암호화 후 base64 인코딩된 페이로드
	Hash           string `json:"hash"`            // sha256(EncodedPayload)
	PrevHash       string `json:"prev_hash"`       // 직전 버전 해시 (첫 버전 "")
	Timestamp      string `json:"timestamp"`       // 생성 시각 (RFC3339)
	Version        int    `json:"version"`         // 1부터 증가
	AccessLevel    int    `json:"access_level"`    // 열람에 필요한 최소 접근 레벨
}

////////////////////////////////////////////////////////////////////////////////
// 3. AccessPermission
// ------------------------------------------------------------
// 감사 요건상 물리 삭제하지 않음. 회수/자연만료 시 IsActive=false 로만 전환.
////////////////////////////////////////////////////////////////////////////////

// 접근 레벨 상수 (클수록 넓은 권한)
const (
	AccessBasic    = 1
	AccessStandard = 2
	AccessFull     = 3
)

type AccessPermission struct {
	ID          string    `json:"id"`                   // 고유 ID (uuid)
	PatientID   string    `json:"patient_id"`           // 대상 환자
	GranteeID   string    `json:"grantee_id"`           // 권한을 받는 주체 (의사 등)
	GrantedBy   string    `json:"granted_by"`           // 권한을 부여한 주체
	AccessLevel int       `json:"access_level"`         // 부여된 레벨
	GrantedAt   time.Time `json:"granted_at"`           // 부여 시각
	ExpiresAt   time.Time `json:"expires_at"`           // 만료 시각 (now+duration)
	Purpose     string    `json:"purpose,omitempty"`    // 부여 목적
	IsActive    bool      `json:"is_active"`            // 유효 여부
	RevokedAt   time.Time `json:"revoked_at,omitempty"` // 회수/만료 처리 시각
}

////////////////////////////////////////////////////////////////////////////////
// 4. NetworkNode / ConsensusVote
// ------------------------------------------------------------
// 고정 피어 로스터 및 블록 해시에 대한 찬반 투표 기록.
// 정족수(confirmation_requirement) 이상의 찬성이 있으면 consensus_valid.
////////////////////////////////////////////////////////////////////////////////

type NetworkNode struct {
	ID   string `json:"id"`   // 노드 식별자
	Addr string `json:"addr"` // 노드 주소 (실제 전송 계층 대체 시 사용)
}

type ConsensusVote struct {
	NodeID    string `json:"node_id"`    // 투표한 노드
	BlockHash string `json:"block_hash"` // 투표 대상 블록 해시
	Approve   bool   `json:"approve"`    // 찬성 여부
	Timestamp string `json:"timestamp"`  // 투표 시각 (RFC3339)
}

////////////////////////////////////////////////////////////////////////////////
// 5. VerificationResult / LedgerStats
////////////////////////////////////////////////////////////////////////////////

// 레코드 해시에 대한 5개 축 검증 결과
type VerificationResult struct {
	HashValid      bool `json:"hash_valid"`      // sha256(EncodedPayload) 재계산 일치
	LedgerValid    bool `json:"ledger_valid"`    // 봉인된 블록에 트랜잭션 존재
	SignatureValid bool `json:"signature_valid"` // ECDSA 서명 검증 통과
	ConsensusValid bool `json:"consensus_valid"` // 정족수 이상 피어 찬성
	ChainValid     bool `json:"chain_valid"`     // 환자 체인 연속성 유지
	OverallValid   bool `json:"overall_valid"`   // 위 5개 모두 참
}

type LedgerStats struct {
	BlockCount       int    `json:"block_count"`       // 제네시스 포함 블록 수
	TransactionCount int    `json:"transaction_count"` // 봉인된 트랜잭션 총수
	SizeEstimate     int    `json:"size_estimate"`     // 장부 크기 추정치 (bytes)
	LastBlockTime    string `json:"last_block_time"`   // 마지막 블록 생성 시각
}
