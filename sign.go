package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"log"
)

////////////////////////////////////////////////////////////////////////////////
// Transaction 서명 (ECDSA P-256)
// ------------------------------------------------------------
// 노드 키쌍은 최초 기동 시 생성되어 메타 키공간에 PEM으로 저장됨.
// 서명 메시지는 "record_hash|timestamp" 문자열의 SHA-256.
// 공개키가 트랜잭션에 함께 실리므로 제3자가 독립적으로 검증 가능함
// (원 시스템의 해시 기반 유사서명을 대체, DESIGN.md 참고)
////////////////////////////////////////////////////////////////////////////////

type Signer struct {
	store *Storage
}

// 개인키, 공개키 자동 생성 (최초 실행 시)
func newSigner(store *Storage) (*Signer, error) {
	s := &Signer{store: store}
	if _, ok := store.getMeta("meta_node_privkey"); ok {
		return s, nil
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	privBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	privPem := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes}))
	pubPem := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}))

	if err := store.putMeta("meta_node_privkey", privPem); err != nil {
		return nil, err
	}
	if err := store.putMeta("meta_node_pubkey", pubPem); err != nil {
		return nil, err
	}
	log.Println("[SIGN][INIT] Generated ECDSA key pair for node")
	return s, nil
}

func (s *Signer) publicKeyPEM() string {
	pub, _ := s.store.getMeta("meta_node_pubkey")
	return pub
}

// 서명 생성 (hex DER)
func (s *Signer) sign(recordHash, timestamp string) (string, error) {
	privPem, ok := s.store.getMeta("meta_node_privkey")
	if !ok {
		return "", fmt.Errorf("private key missing: %w", ErrNotFound)
	}
	block, _ := pem.Decode([]byte(privPem))
	if block == nil {
		return "", fmt.Errorf("invalid private key pem")
	}
	priv, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return "", err
	}

	msg := []byte(recordHash + "|" + timestamp)
	hash := sha256.Sum256(msg)
	der, err := ecdsa.SignASN1(rand.Reader, priv, hash[:])
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(der), nil
}

// 서명 검증: 트랜잭션에 실린 공개 데이터만으로 재검증
func verifySignature(recordHash, timestamp, sigHex, pubPem string) bool {
	block, _ := pem.Decode([]byte(pubPem))
	if block == nil {
		return false
	}
	pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return false
	}
	pub, ok := pubAny.(*ecdsa.PublicKey)
	if !ok {
		return false
	}
	der, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	hash := sha256.Sum256([]byte(recordHash + "|" + timestamp))
	return ecdsa.VerifyASN1(pub, hash[:], der)
}
