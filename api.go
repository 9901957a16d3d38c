// api.go
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// JSON 헬퍼
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// 오류 분류 => HTTP 상태코드 매핑
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRecordValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnauthorizedAccess):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrChainIntegrity):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// main.go에서 mux와 Service를 넘겨받아 API 핸들 등록
func registerAPI(mux *http.ServeMux, svc *Service) {

	// 신규 환자 레코드 생성
	// POST /record/create {patient_id, record_type, payload, access_level}
	mux.HandleFunc("/record/create", func(w http.ResponseWriter, r *http.Request) {
		handleCreate(w, r, svc.createPatientRecord)
	})

	// 의뢰 연계 파생 레코드 (기존 이력 필수)
	// POST /record/derive {patient_id, record_type, payload, access_level}
	mux.HandleFunc("/record/derive", func(w http.ResponseWriter, r *http.Request) {
		handleCreate(w, r, svc.addDerivedRecord)
	})

	// 환자 이력 조회 (생성순)
	// GET /record/history?patient=<id>
	mux.HandleFunc("/record/history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		pid := r.URL.Query().Get("patient")
		if pid == "" {
			http.Error(w, "patient parameter required", http.StatusBadRequest)
			return
		}
		history, err := svc.getPatientRecordHistory(pid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
	})

	// 권한 확인 후 페이로드 복호화
	// GET /record/payload?hash=<recordHash>&requester=<id>
	mux.HandleFunc("/record/payload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		hash := r.URL.Query().Get("hash")
		requester := r.URL.Query().Get("requester")
		if hash == "" || requester == "" {
			http.Error(w, "hash and requester parameters required", http.StatusBadRequest)
			return
		}
		payload, err := svc.getDecryptedPayload(hash, requester)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"payload": string(payload)})
	})

	// 5개 축 검증
	// GET /verify?hash=<recordHash>
	mux.HandleFunc("/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		hash := r.URL.Query().Get("hash")
		if hash == "" {
			http.Error(w, "hash parameter required", http.StatusBadRequest)
			return
		}
		res, err := svc.verifyRecord(hash)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	// 접근 권한 부여
	// POST /access/grant {patient_id, grantee_id, access_level, duration_sec, granted_by, purpose}
	mux.HandleFunc("/access/grant", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			PatientID   string `json:"patient_id"`
			GranteeID   string `json:"grantee_id"`
			AccessLevel int    `json:"access_level"`
			DurationSec int    `json:"duration_sec"`
			GrantedBy   string `json:"granted_by"`
			Purpose     string `json:"purpose"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		id, err := svc.grantAccess(req.PatientID, req.GranteeID, req.AccessLevel,
			time.Duration(req.DurationSec)*time.Second, req.GrantedBy, req.Purpose)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"permission_id": id})
	})

	// 접근 권한 회수
	// POST /access/revoke {permission_id}
	mux.HandleFunc("/access/revoke", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			PermissionID string `json:"permission_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if err := svc.revokeAccess(req.PermissionID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	})

	// 장부 통계
	// GET /ledger/stats
	mux.HandleFunc("/ledger/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, svc.getLedgerStats())
	})

	// 전체 장부 조회 (페이지네이션)
	// GET /blocks?offset=<int>&limit=<int>
	mux.HandleFunc("/blocks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		blocks, total, err := svc.ledger.listBlocksPaginated(offset, limit)
		if err != nil {
			http.Error(w, fmt.Sprintf("list blocks error: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total":  total,
			"offset": offset,
			"limit":  limit,
			"items":  blocks,
		})
	})

	// 블록 조회: 인덱스
	// GET /block/index?id=<int>
	mux.HandleFunc("/block/index", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query().Get("id")
		if q == "" {
			http.Error(w, "id parameter required", http.StatusBadRequest)
			return
		}
		idx, err := strconv.Atoi(q)
		if err != nil {
			http.Error(w, "id must be integer", http.StatusBadRequest)
			return
		}
		blk, err := svc.store.getBlockByIndex(idx)
		if err != nil {
			http.Error(w, "block not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, blk)
	})

	// 블록 조회: 해시
	// GET /block/hash?value=<hash>
	mux.HandleFunc("/block/hash", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		hash := r.URL.Query().Get("value")
		if hash == "" {
			http.Error(w, "value parameter required", http.StatusBadRequest)
			return
		}
		blk, err := svc.store.getBlockByHash(hash)
		if err != nil {
			http.Error(w, "block not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, blk)
	})

	// 레코드 해시의 머클 포함 증명
	// GET /proof?hash=<recordHash>
	mux.HandleFunc("/proof", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		hash := r.URL.Query().Get("hash")
		if hash == "" {
			http.Error(w, "missing query param: hash", http.StatusBadRequest)
			return
		}
		blk, ok := svc.ledger.blockOfTransaction(hash)
		if !ok {
			http.Error(w, "transaction not found", http.StatusNotFound)
			return
		}
		leaf := make([]string, len(blk.Transactions))
		target := -1
		for i, tx := range blk.Transactions {
			leaf[i] = hashTransaction(tx)
			if tx.RecordHash == hash {
				target = i
			}
		}
		if target < 0 {
			http.Error(w, "transaction not found in block", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"block_index": blk.Index,
			"merkle_root": blk.MerkleRoot,
			"leaf":        leaf[target],
			"proof":       merkleProof(leaf, target), // [][2]string { siblingHex, "L"/"R" }
		})
	})

	// 피어 투표 재동기화
	// POST /sync
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		n, err := svc.syncWithPeers()
		if err != nil {
			// 비치명적: 상태만 전달
			writeJSON(w, http.StatusOK, map[string]any{"status": "partial", "refreshed": n, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "refreshed": n})
	})

	// 노드 상태 확인
	// GET /status : 헬스/높이/풀 상태 리턴
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		h, _ := svc.store.latestHeight()
		writeJSON(w, http.StatusOK, map[string]any{
			"node_id": svc.cfg.NodeID,
			"height":  h,
			"pending": svc.pool.size(),
			"mining":  svc.isMining.Load(),
			"peers":   svc.peers.listPeers(),
		})
	})
}

// /record/create 와 /record/derive 의 공통 처리
func handleCreate(w http.ResponseWriter, r *http.Request, create func(string, string, []byte, int) (string, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PatientID   string `json:"patient_id"`
		RecordType  string `json:"record_type"`
		Payload     string `json:"payload"`
		AccessLevel int    `json:"access_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	hash, err := create(req.PatientID, req.RecordType, []byte(req.Payload), req.AccessLevel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"record_hash": hash})
}
