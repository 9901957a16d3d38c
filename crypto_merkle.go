package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

////////////////////////////////////////////////////////////////////////////////
// Hash / Merkle 유틸
// ------------------------------------------------------------
// - sha256Hex      : 콘텐츠 해시 (결정적, 부수효과 없음)
// - jsonCanonical  : key 정렬 직렬화 (해시 재현성 확보)
// - merkleRootHex  : 리프 해시 배열 => 머클루트 (홀수 리프는 마지막 복제)
// - merkleProof    : 리프 인덱스 => 포함 증명 경로
// 입력 순서에 민감하므로 풀 -> 블록 사이에서 트랜잭션 순서를 보존해야 함
////////////////////////////////////////////////////////////////////////////////

// SHA-256 해시를 hex 문자열로 반환
func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// 빈 배치의 머클루트 sentinel
var emptyMerkleRoot = sha256Hex(nil)

// JSON을 key 정렬 후 직렬화 (해시 재현성 확보)
func jsonCanonical(obj interface{}) []byte {
	m, _ := json.Marshal(obj)
	var temp map[string]interface{}
	json.Unmarshal(m, &temp)

	// key 정렬
	keys := make([]string, 0, len(temp))
	for k := range temp {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]interface{})
	for _, k := range keys {
		ordered[k] = temp[k]
	}

	result, _ := json.Marshal(ordered)
	return result
}

// Transaction 해시 생성 => 머클 리프
func hashTransaction(tx Transaction) string {
	return sha256Hex(jsonCanonical(tx))
}

// Merkle Root 계산 : O(N)
func merkleRootHex(leafHashes []string) string {
	if len(leafHashes) == 0 {
		return emptyMerkleRoot
	}
	nodes := leafHashes
	for len(nodes) > 1 {
		var newLevel []string
		for i := 0; i < len(nodes); i += 2 {
			if i+1 < len(nodes) {
				combined := append([]byte(nodes[i]), []byte(nodes[i+1])...)
				newLevel = append(newLevel, sha256Hex(combined))
			} else {
				// 홀수일 때 마지막 노드 복제
				combined := append([]byte(nodes[i]), []byte(nodes[i])...)
				newLevel = append(newLevel, sha256Hex(combined))
			}
		}
		nodes = newLevel
	}
	return nodes[0]
}

// Merkle Proof 생성 (리프 인덱스 => 경로)
// proof = [ (형제해시, "L"/"R") , ... ]
func merkleProof(leafHashes []string, idx int) [][2]string {
	if idx < 0 || idx >= len(leafHashes) {
		return nil
	}
	var proof [][2]string
	nodes := leafHashes

	current := idx
	for len(nodes) > 1 {
		var nextLevel []string
		for i := 0; i < len(nodes); i += 2 {
			var parent string
			if i+1 < len(nodes) {
				combined := append([]byte(nodes[i]), []byte(nodes[i+1])...)
				parent = sha256Hex(combined)
			} else {
				combined := append([]byte(nodes[i]), []byte(nodes[i])...)
				parent = sha256Hex(combined)
			}
			nextLevel = append(nextLevel, parent)
		}

		// 형제 노드 계산
		siblingIdx := current ^ 1
		if siblingIdx < len(nodes) {
			sibling := nodes[siblingIdx]
			if current%2 == 0 {
				proof = append(proof, [2]string{sibling, "R"})
			} else {
				proof = append(proof, [2]string{sibling, "L"})
			}
		} else {
			// 홀수 끝 리프는 자기 자신과 결합
			proof = append(proof, [2]string{nodes[current], "R"})
		}
		current = current / 2
		nodes = nextLevel
	}
	return proof
}

// Merkle Proof 검증 : O(logN)
// 주: 리프/루트는 hex 문자열 자체를 바이트로 결합함 (merkleRootHex와 동일 규칙)
func verifyMerkleProof(leafHex string, rootHex string, proof [][2]string) bool {
	h := leafHex
	for _, p := range proof {
		sib := p[0]
		if p[1] == "L" {
			h = sha256Hex(append([]byte(sib), []byte(h)...))
		} else {
			h = sha256Hex(append([]byte(h), []byte(sib)...))
		}
	}
	return h == rootHex
}
