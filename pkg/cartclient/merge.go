package cartclient

import (
	"context"
	"sync"
)

// MergeLines folds local lines into the server cart. Quantities of shared
// products are summed. Server lines keep their order and local-only lines
// follow in local order.
func MergeLines(local, server []Line) []Line {
	merged := make([]Line, 0, len(server)+len(local))
	index := make(map[int]int, len(server)+len(local))
	for _, line := range server {
		if pos, ok := index[line.ProductID]; ok {
			merged[pos].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	for _, line := range local {
		if pos, ok := index[line.ProductID]; ok {
			merged[pos].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

// Merger reconciles the anonymous cart into the server cart on sign-in.
type Merger struct {
	syncer *Syncer

	mu        sync.Mutex
	hasMerged bool
}

// NewMerger returns a Merger that has not merged yet.
func NewMerger(syncer *Syncer) *Merger {
	return &Merger{syncer: syncer}
}

// OnAuthChange merges once per transition to authenticated. Signing out re-arms it.
func (m *Merger) OnAuthChange(ctx context.Context, authenticated bool) error {
	m.syncer.SetAuthenticated(authenticated)

	m.mu.Lock()
	if !authenticated {
		m.hasMerged = false
		m.mu.Unlock()
		return nil
	}
	if m.hasMerged {
		m.mu.Unlock()
		return nil
	}
	m.hasMerged = true
	m.mu.Unlock()

	return m.Merge(ctx)
}

// HasMerged reports whether the current session already merged.
func (m *Merger) HasMerged() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasMerged
}

// Merge fetches the server cart, merges the local lines into it, stores the
// result locally and pushes it back in a single ReplaceItems call.
func (m *Merger) Merge(ctx context.Context) error {
	s := m.syncer
	s.busy.Add(1)
	defer s.busy.Add(-1)

	remote, err := s.server.GetCart(ctx)
	if err != nil {
		s.fail(ctx, "Failed to merge carts", err)
		return err
	}

	merged := MergeLines(s.store.Items(), fromRemote(remote))
	s.store.Replace(ctx, merged)

	if err := s.server.ReplaceItems(ctx, toRemote(merged)); err != nil {
		s.fail(ctx, "Failed to merge carts", err)
		return err
	}
	s.store.MarkSynced(ctx, s.now())
	s.SetErr("")
	return nil
}
