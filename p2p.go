package main

import (
	"context"
	"fmt"
	"log"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// Peer 관리 (합의 시뮬레이션)
// ----------------------------------------------------------------------------
// 실제 네트워크 전송은 범위 밖이므로 PeerClient 인터페이스 뒤에 고정 로스터를
// 둠. 장부 로직을 건드리지 않고 실제 피어 통신으로 교체할 수 있도록
// listPeers / fetchVote만 노출함.
// 투표 수집은 best-effort: 타임아웃으로 제한하고, 실패해도 레코드 생성과
// 채굴을 막지 않으며 consensus 축 신뢰도만 낮아짐. 다음 sync 주기에 재시도.
////////////////////////////////////////////////////////////////////////////////

type PeerClient interface {
	listPeers() []NetworkNode
	fetchVote(ctx context.Context, nodeID, blockHash string) (ConsensusVote, error)
}

// 고정 로스터 스텁: 모든 피어가 관측한 블록에 찬성 투표를 돌려줌
type staticPeerSet struct {
	nodes []NetworkNode
}

func newStaticPeerSet(ids []string) *staticPeerSet {
	nodes := make([]NetworkNode, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, NetworkNode{ID: id, Addr: id + ":5000"})
	}
	return &staticPeerSet{nodes: nodes}
}

func (s *staticPeerSet) listPeers() []NetworkNode {
	out := make([]NetworkNode, len(s.nodes))
	copy(out, s.nodes)
	return out
}

func (s *staticPeerSet) fetchVote(ctx context.Context, nodeID, blockHash string) (ConsensusVote, error) {
	select {
	case <-ctx.Done():
		return ConsensusVote{}, fmt.Errorf("%w: %s: %v", ErrPeerSync, nodeID, ctx.Err())
	default:
	}
	for _, n := range s.nodes {
		if n.ID == nodeID {
			return ConsensusVote{
				NodeID:    nodeID,
				BlockHash: blockHash,
				Approve:   true,
				Timestamp: time.Now().Format(time.RFC3339),
			}, nil
		}
	}
	return ConsensusVote{}, fmt.Errorf("%w: unknown node %s", ErrPeerSync, nodeID)
}

// 피어 투표 수집 타임아웃
const peerVoteTimeout = 3 * time.Second

// 블록 해시에 대한 피어 투표 수집/기록
// 실패한 피어는 로그만 남기고 건너뜀 (다음 sync에서 재시도)
func collectVotes(store *Storage, peers PeerClient, blockHash string) int {
	collected := 0
	for _, node := range peers.listPeers() {
		ctx, cancel := context.WithTimeout(context.Background(), peerVoteTimeout)
		vote, err := peers.fetchVote(ctx, node.ID, blockHash)
		cancel()
		if err != nil {
			log.Printf("[PEER] vote fetch failed (node=%s block=%.12s): %v", node.ID, blockHash, err)
			continue
		}
		if err := store.saveVote(vote); err != nil {
			log.Printf("[PEER] vote save failed: %v", err)
			continue
		}
		collected++
	}
	return collected
}

// 전체 블록을 훑으며 빠진 투표를 보충 (주기 동기화 / syncWithPeers)
func syncVotes(store *Storage, peers PeerClient) (int, error) {
	h, ok := store.latestHeight()
	if !ok {
		return 0, fmt.Errorf("no chain: %w", ErrNotFound)
	}

	roster := peers.listPeers()
	refreshed := 0
	for i := 0; i <= h; i++ {
		blk, err := store.getBlockByIndex(i)
		if err != nil {
			return refreshed, err
		}
		have := map[string]bool{}
		for _, v := range store.votesFor(blk.BlockHash) {
			have[v.NodeID] = true
		}
		for _, node := range roster {
			if have[node.ID] {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), peerVoteTimeout)
			vote, err := peers.fetchVote(ctx, node.ID, blk.BlockHash)
			cancel()
			if err != nil {
				log.Printf("[PEER] sync vote failed (node=%s block=#%d): %v", node.ID, i, err)
				continue
			}
			if err := store.saveVote(vote); err != nil {
				continue
			}
			refreshed++
		}
	}
	log.Printf("[PEER] Vote sync complete (+%d votes, height=%d)", refreshed, h)
	return refreshed, nil
}
