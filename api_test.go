package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAPI(t *testing.T) (*Service, *httptest.Server) {
	t.Helper()
	svc := newTestService(t)
	mux := http.NewServeMux()
	registerAPI(mux, svc)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return svc, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAPICreateRecord(t *testing.T) {
	_, srv := newTestAPI(t)

	resp := postJSON(t, srv.URL+"/record/create", map[string]any{
		"patient_id":   "P1",
		"record_type":  "diagnosis",
		"payload":      "hello",
		"access_level": AccessStandard,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out map[string]string
	decodeBody(t, resp, &out)
	if out["record_hash"] == "" {
		t.Fatalf("empty record_hash in response")
	}
}

func TestAPICreateRecordRejectsInvalid(t *testing.T) {
	_, srv := newTestAPI(t)

	// 빈 페이로드 => 400
	resp := postJSON(t, srv.URL+"/record/create", map[string]any{
		"patient_id":   "P1",
		"record_type":  "diagnosis",
		"payload":      "",
		"access_level": AccessBasic,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAPIPayloadAuthorization(t *testing.T) {
	_, srv := newTestAPI(t)

	resp := postJSON(t, srv.URL+"/record/create", map[string]any{
		"patient_id":   "P1",
		"record_type":  "diagnosis",
		"payload":      "secret",
		"access_level": AccessStandard,
	})
	var created map[string]string
	decodeBody(t, resp, &created)
	hash := created["record_hash"]

	resp = postJSON(t, srv.URL+"/access/grant", map[string]any{
		"patient_id":   "P1",
		"grantee_id":   "doctor42",
		"access_level": AccessStandard,
		"duration_sec": 3600,
		"granted_by":   "P1",
		"purpose":      "treatment",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("grant status = %d, want 200", resp.StatusCode)
	}
	var granted map[string]string
	decodeBody(t, resp, &granted)

	// 권한 있는 요청자 => 200 + 평문
	resp, err := http.Get(fmt.Sprintf("%s/record/payload?hash=%s&requester=doctor42", srv.URL, hash))
	if err != nil {
		t.Fatalf("GET payload: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authorized payload status = %d, want 200", resp.StatusCode)
	}
	var payload map[string]string
	decodeBody(t, resp, &payload)
	if payload["payload"] != "secret" {
		t.Fatalf("payload = %q, want secret", payload["payload"])
	}

	// 권한 없는 요청자 => 403
	resp, err = http.Get(fmt.Sprintf("%s/record/payload?hash=%s&requester=nurse7", srv.URL, hash))
	if err != nil {
		t.Fatalf("GET payload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unauthorized payload status = %d, want 403", resp.StatusCode)
	}

	// 회수 후 => 403
	resp = postJSON(t, srv.URL+"/access/revoke", map[string]any{"permission_id": granted["permission_id"]})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke status = %d, want 200", resp.StatusCode)
	}
	resp, _ = http.Get(fmt.Sprintf("%s/record/payload?hash=%s&requester=doctor42", srv.URL, hash))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("post-revoke payload status = %d, want 403", resp.StatusCode)
	}
}

func TestAPIVerifyFlow(t *testing.T) {
	svc, srv := newTestAPI(t)

	hash, err := svc.createPatientRecord("P1", "diagnosis", []byte("x"), AccessBasic)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 채굴 전 => 404
	resp, _ := http.Get(srv.URL + "/verify?hash=" + hash)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unmined verify status = %d, want 404", resp.StatusCode)
	}

	if _, err := svc.mineOnce(); err != nil {
		t.Fatalf("mineOnce: %v", err)
	}

	resp, _ = http.Get(srv.URL + "/verify?hash=" + hash)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d, want 200", resp.StatusCode)
	}
	var res VerificationResult
	decodeBody(t, resp, &res)
	if !res.OverallValid {
		t.Fatalf("mined record should verify, got %+v", res)
	}
}

func TestAPIHistoryAndStatus(t *testing.T) {
	svc, srv := newTestAPI(t)

	svc.createPatientRecord("P1", "diagnosis", []byte("a"), AccessBasic)
	svc.createPatientRecord("P1", "diagnosis", []byte("b"), AccessBasic)

	resp, _ := http.Get(srv.URL + "/record/history?patient=P1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d, want 200", resp.StatusCode)
	}
	var history []MedicalRecord
	decodeBody(t, resp, &history)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}

	resp, _ = http.Get(srv.URL + "/status")
	var status map[string]any
	decodeBody(t, resp, &status)
	if status["node_id"] != "test-node" {
		t.Fatalf("status node_id = %v", status["node_id"])
	}
	if status["pending"].(float64) != 2 {
		t.Fatalf("status pending = %v, want 2", status["pending"])
	}
}

func TestAPIProof(t *testing.T) {
	svc, srv := newTestAPI(t)

	hash, err := svc.createPatientRecord("P1", "diagnosis", []byte("x"), AccessBasic)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.mineOnce(); err != nil {
		t.Fatalf("mineOnce: %v", err)
	}

	resp, _ := http.Get(srv.URL + "/proof?hash=" + hash)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("proof status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		MerkleRoot string      `json:"merkle_root"`
		Leaf       string      `json:"leaf"`
		Proof      [][2]string `json:"proof"`
	}
	decodeBody(t, resp, &out)
	if !verifyMerkleProof(out.Leaf, out.MerkleRoot, out.Proof) {
		t.Fatalf("returned proof does not verify against merkle root")
	}
}

func TestAPISync(t *testing.T) {
	svc, srv := newTestAPI(t)

	svc.createPatientRecord("P1", "diagnosis", []byte("x"), AccessBasic)
	if _, err := svc.mineOnce(); err != nil {
		t.Fatalf("mineOnce: %v", err)
	}

	resp := postJSON(t, srv.URL+"/sync", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d, want 200", resp.StatusCode)
	}
	var out map[string]any
	decodeBody(t, resp, &out)
	if out["status"] != "ok" {
		t.Fatalf("sync status field = %v, want ok", out["status"])
	}
}
