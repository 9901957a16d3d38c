package main

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

////////////////////////////////////////////////////////////////////////////////
// Access Permission Registry
// ----------------------------------------------------------------------------
// - 기간 제한/레벨 기반 접근 권한의 부여와 회수
// - 물리 삭제 없음 (감사 요건), 회수/자연만료 시 IsActive=false 전환만 수행
// - 만료는 lazy: 백그라운드 스윕 없이 읽기 시점마다 ExpiresAt 재확인
// - 권한 변경도 장부 트랜잭션으로 남김 (record_hash 자리에 권한 스냅샷 해시)
////////////////////////////////////////////////////////////////////////////////

type AccessRegistry struct {
	store  *Storage
	pool   *TxPool
	signer *Signer
}

func newAccessRegistry(store *Storage, pool *TxPool, signer *Signer) *AccessRegistry {
	return &AccessRegistry{store: store, pool: pool, signer: signer}
}

// 접근 권한 부여, 권한 ID 반환
func (ar *AccessRegistry) grant(patientID, granteeID string, level int, duration time.Duration, grantedBy, purpose string) (string, error) {
	if patientID == "" || granteeID == "" {
		return "", fmt.Errorf("%w: patient and grantee required", ErrRecordValidation)
	}
	if level < AccessBasic || level > AccessFull {
		return "", fmt.Errorf("%w: invalid access level %d", ErrRecordValidation, level)
	}

	now := time.Now()
	perm := AccessPermission{
		ID:          uuid.New().String(),
		PatientID:   patientID,
		GranteeID:   granteeID,
		GrantedBy:   grantedBy,
		AccessLevel: level,
		GrantedAt:   now,
		ExpiresAt:   now.Add(duration),
		Purpose:     purpose,
		IsActive:    true,
	}
	if err := ar.store.savePermission(perm); err != nil {
		return "", fmt.Errorf("save permission: %w", err)
	}
	if err := ar.emitTx(TxAccess, perm); err != nil {
		return "", err
	}

	log.Printf("[ACCESS] Granted level-%d to %s for patient=%s (expires=%s)",
		level, granteeID, patientID, perm.ExpiresAt.Format(time.RFC3339))
	return perm.ID, nil
}

// 접근 권한 회수 (이미 비활성이면 no-op)
func (ar *AccessRegistry) revoke(permissionID string) error {
	perm, ok := ar.store.getPermission(permissionID)
	if !ok {
		return fmt.Errorf("permission %s: %w", permissionID, ErrNotFound)
	}
	if !perm.IsActive {
		return nil
	}

	perm.IsActive = false
	perm.RevokedAt = time.Now()
	if err := ar.store.savePermission(perm); err != nil {
		return fmt.Errorf("save permission: %w", err)
	}
	if err := ar.emitTx(TxRevoke, perm); err != nil {
		return err
	}

	log.Printf("[ACCESS] Revoked permission %s (patient=%s grantee=%s)", perm.ID, perm.PatientID, perm.GranteeID)
	return nil
}

// 유효하고 만료되지 않은 minLevel 이상의 권한 존재 여부 (호출 시점 평가)
func (ar *AccessRegistry) hasAccess(patientID, granteeID string, minLevel int) bool {
	perms, err := ar.store.permissionsFor(patientID, granteeID)
	if err != nil {
		log.Printf("[ACCESS] permission lookup failed: %v", err)
		return false
	}

	now := time.Now()
	for _, p := range perms {
		if !p.IsActive {
			continue
		}
		// lazy 만료 처리: 읽기 시점에 지났으면 비활성으로 전환해 둠
		if !now.Before(p.ExpiresAt) {
			p.IsActive = false
			p.RevokedAt = p.ExpiresAt
			if err := ar.store.savePermission(p); err != nil {
				log.Printf("[ACCESS] expire flip failed: %v", err)
			}
			continue
		}
		if p.AccessLevel >= minLevel {
			return true
		}
	}
	return false
}

// 권한 스냅샷을 해시로 커밋하는 서명 트랜잭션 적재
func (ar *AccessRegistry) emitTx(txType string, perm AccessPermission) error {
	permHash := sha256Hex(jsonCanonical(perm))
	ts := time.Now().Format(time.RFC3339)
	sig, err := ar.signer.sign(permHash, ts)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	tx := Transaction{
		ID:         uuid.New().String(),
		Type:       txType,
		PatientID:  perm.PatientID,
		RecordHash: permHash,
		Timestamp:  ts,
		Signature:  sig,
		PublicKey:  ar.signer.publicKeyPEM(),
	}
	return ar.pool.enqueue(tx)
}
