package main

import (
	"errors"
	"testing"
	"time"
)

func TestGrantThenRevoke(t *testing.T) {
	svc := newTestService(t)

	permID, err := svc.grantAccess("P1", "doctor42", AccessStandard, time.Hour, "P1", "treatment")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !svc.access.hasAccess("P1", "doctor42", AccessStandard) {
		t.Fatalf("grantee should have access after grant")
	}

	if err := svc.revokeAccess(permID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if svc.access.hasAccess("P1", "doctor42", AccessBasic) {
		t.Fatalf("grantee should lose access after revoke")
	}

	// 회수된 권한은 물리 삭제 없이 비활성으로 남아야 함
	perm, ok := svc.store.getPermission(permID)
	if !ok {
		t.Fatalf("revoked permission must stay stored")
	}
	if perm.IsActive || perm.RevokedAt.IsZero() {
		t.Fatalf("revoked permission not flipped: %+v", perm)
	}
}

func TestRevokeMissingPermission(t *testing.T) {
	svc := newTestService(t)
	if err := svc.revokeAccess("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeTwiceIsNoOp(t *testing.T) {
	svc := newTestService(t)
	permID, err := svc.grantAccess("P1", "doctor42", AccessBasic, time.Hour, "P1", "audit")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.revokeAccess(permID); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := svc.revokeAccess(permID); err != nil {
		t.Fatalf("second revoke should be no-op, got %v", err)
	}
}

// duration 0 => 부여 즉시 만료 상태
func TestZeroDurationExpiresImmediately(t *testing.T) {
	svc := newTestService(t)
	permID, err := svc.grantAccess("P1", "doctor42", AccessFull, 0, "P1", "emergency")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if svc.access.hasAccess("P1", "doctor42", AccessBasic) {
		t.Fatalf("zero-duration grant must not confer access")
	}

	// lazy 만료가 RevokedAt=ExpiresAt로 비활성 전환했는지 확인
	perm, _ := svc.store.getPermission(permID)
	if perm.IsActive {
		t.Fatalf("expired permission should be flipped inactive on read")
	}
	if !perm.RevokedAt.Equal(perm.ExpiresAt) {
		t.Fatalf("revoked_at = %v, want expires_at %v", perm.RevokedAt, perm.ExpiresAt)
	}
}

func TestAccessLevelComparison(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.grantAccess("P1", "doctor42", AccessStandard, time.Hour, "P1", "treatment"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	if !svc.access.hasAccess("P1", "doctor42", AccessBasic) {
		t.Fatalf("standard grant must cover basic requirement")
	}
	if !svc.access.hasAccess("P1", "doctor42", AccessStandard) {
		t.Fatalf("standard grant must cover standard requirement")
	}
	if svc.access.hasAccess("P1", "doctor42", AccessFull) {
		t.Fatalf("standard grant must not cover full requirement")
	}
	if svc.access.hasAccess("P2", "doctor42", AccessBasic) {
		t.Fatalf("grant is per patient, must not leak to another")
	}
}

func TestGrantValidation(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.grantAccess("", "doctor42", AccessBasic, time.Hour, "P1", "x"); !errors.Is(err, ErrRecordValidation) {
		t.Fatalf("empty patient: expected ErrRecordValidation, got %v", err)
	}
	if _, err := svc.grantAccess("P1", "doctor42", 0, time.Hour, "P1", "x"); !errors.Is(err, ErrRecordValidation) {
		t.Fatalf("level 0: expected ErrRecordValidation, got %v", err)
	}
}

// 권한 변경도 장부 트랜잭션으로 남아야 함
func TestAccessChangesEnterPool(t *testing.T) {
	svc := newTestService(t)
	permID, err := svc.grantAccess("P1", "doctor42", AccessBasic, time.Hour, "P1", "audit")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.revokeAccess(permID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if svc.pool.size() != 2 {
		t.Fatalf("pool size = %d, want 2 (grant + revoke tx)", svc.pool.size())
	}
	_, txs := svc.pool.drainBatch(10)
	if txs[0].Type != TxAccess || txs[1].Type != TxRevoke {
		t.Fatalf("unexpected tx types: %s, %s", txs[0].Type, txs[1].Type)
	}
}
