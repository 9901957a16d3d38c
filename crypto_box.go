package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"

	"golang.org/x/crypto/chacha20poly1305"
)

////////////////////////////////////////////////////////////////////////////////
// Payload 암호화 (AEAD)
// ------------------------------------------------------------
// 저장 페이로드는 ChaCha20-Poly1305로 봉인 후 base64 인코딩.
// 키는 노드 마스터키에서 환자 단위로 파생: sha256(master ‖ patientID).
// patientID를 AD로 묶어 다른 환자 레코드로의 암호문 이식을 차단함.
// 호출 형태는 encode(payload)->stored / decode(stored)->payload 그대로 유지.
////////////////////////////////////////////////////////////////////////////////

type PayloadBox struct {
	master []byte
}

// 마스터키 로드/생성 (메타 키공간에 hex 저장)
func newPayloadBox(store *Storage) (*PayloadBox, error) {
	if v, ok := store.getMeta("meta_box_key"); ok {
		key, err := hex.DecodeString(v)
		if err != nil || len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("invalid stored box key")
		}
		return &PayloadBox{master: key}, nil
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate box key: %w", err)
	}
	if err := store.putMeta("meta_box_key", hex.EncodeToString(key)); err != nil {
		return nil, err
	}
	log.Println("[BOX][INIT] Generated payload master key")
	return &PayloadBox{master: key}, nil
}

// 환자 단위 키 파생
func (b *PayloadBox) patientKey(patientID string) []byte {
	k := sha256.Sum256(append(append([]byte{}, b.master...), []byte(patientID)...))
	return k[:]
}

// 페이로드 봉인: nonce ‖ ciphertext를 base64로 반환
func (b *PayloadBox) seal(patientID string, plain []byte) (string, error) {
	aead, err := chacha20poly1305.New(b.patientKey(patientID))
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ct := aead.Seal(nonce, nonce, plain, []byte(patientID))
	return base64.StdEncoding.EncodeToString(ct), nil
}

// 페이로드 개봉
func (b *PayloadBox) open(patientID, encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	aead, err := chacha20poly1305.New(b.patientKey(patientID))
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize() {
		return nil, fmt.Errorf("payload too short")
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, []byte(patientID))
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}
	return plain, nil
}
