package main

import "errors"

////////////////////////////////////////////////////////////////////////////////
// 오류 분류 (Error Taxonomy)
// ------------------------------------------------------------
// - ErrRecordValidation   : 잘못된/빈 페이로드, 알 수 없는 환자
// - ErrUnauthorizedAccess : 유효한 접근 권한 없음
// - ErrChainIntegrity     : 블록 추가 시 prev_hash / PoW 검증 실패
// - ErrNotFound           : 레코드/권한/블록 미존재
// - ErrPeerSync           : 피어 동기화 실패 (비치명적, 로그 후 다음 주기 재시도)
//
// 호출자는 errors.Is 로 분류를 판별하고,
// 상세 사유는 fmt.Errorf("...: %w", Err...) 래핑으로 전달함
////////////////////////////////////////////////////////////////////////////////

var (
	ErrRecordValidation   = errors.New("record validation failed")
	ErrUnauthorizedAccess = errors.New("unauthorized access")
	ErrChainIntegrity     = errors.New("chain integrity violation")
	ErrNotFound           = errors.New("not found")
	ErrPeerSync           = errors.New("peer sync failure")
)
