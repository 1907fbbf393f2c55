// Package store provides the in-memory Store implementation.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/roster"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dry runs)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	records  []generic.IncentiveRecord
	ids      map[generic.RecordID]bool
	payments []generic.PaymentRecord
	staff    map[string]roster.StaffMember
	order    []string
}

func NewMemory() *Memory {
	return &Memory{
		ids:   make(map[generic.RecordID]bool),
		staff: make(map[string]roster.StaffMember),
	}
}

// Append adds a single record. Append-only.
func (m *Memory) Append(_ context.Context, rec generic.IncentiveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(rec)
}

// AppendBatch adds multiple records atomically.
func (m *Memory) AppendBatch(_ context.Context, recs []generic.IncentiveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all IDs first (atomic check)
	seen := make(map[generic.RecordID]bool, len(recs))
	for _, r := range recs {
		if r.ID != "" && (m.ids[r.ID] || seen[r.ID]) {
			return generic.ErrDuplicateRecord
		}
		seen[r.ID] = true
	}

	for _, r := range recs {
		if err := m.appendLocked(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(rec generic.IncentiveRecord) error {
	if rec.ID != "" {
		if m.ids[rec.ID] {
			return generic.ErrDuplicateRecord
		}
		m.ids[rec.ID] = true
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) Query(_ context.Context, f generic.Filter) ([]generic.IncentiveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(f), nil
}

func (m *Memory) queryLocked(f generic.Filter) []generic.IncentiveRecord {
	var result []generic.IncentiveRecord
	for _, r := range m.records {
		if f.Matches(r) {
			result = append(result, r)
		}
	}
	// Stable: insertion order within a day.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) RecordPayment(_ context.Context, p generic.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID != "" {
		for _, existing := range m.payments {
			if existing.ID == p.ID {
				return generic.ErrDuplicateRecord
			}
		}
	}
	m.payments = append(m.payments, p)
	return nil
}

func (m *Memory) Payments(_ context.Context, staff string, p generic.Period) ([]generic.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.PaymentRecord
	for _, pay := range m.payments {
		if staff != "" && !strings.EqualFold(pay.Staff, staff) {
			continue
		}
		if !p.Start.IsZero() && !p.Contains(pay.Date) {
			continue
		}
		result = append(result, pay)
	}
	return result, nil
}

// =============================================================================
// STAFF (roster.Store)
// =============================================================================

func (m *Memory) ListStaff(_ context.Context) ([]roster.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]roster.StaffMember, 0, len(m.order))
	for _, key := range m.order {
		result = append(result, m.staff[key])
	}
	return result, nil
}

func (m *Memory) SaveStaff(_ context.Context, member roster.StaffMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(member.Name)
	if _, ok := m.staff[key]; !ok {
		m.order = append(m.order, key)
	}
	m.staff[key] = member
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txMemoryView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	records int
	ids     map[generic.RecordID]bool
}

func (m *Memory) snapshot() memorySnapshot {
	idsCopy := make(map[generic.RecordID]bool, len(m.ids))
	for k, v := range m.ids {
		idsCopy[k] = v
	}
	return memorySnapshot{records: len(m.records), ids: idsCopy}
}

// restore truncates back to the snapshot; records are only ever appended,
// so the prefix is unchanged.
func (m *Memory) restore(s memorySnapshot) {
	m.records = m.records[:s.records]
	m.ids = s.ids
}

// txMemoryView runs with the parent lock already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) Append(_ context.Context, rec generic.IncentiveRecord) error {
	return tv.parent.appendLocked(rec)
}

func (tv *txMemoryView) AppendBatch(_ context.Context, recs []generic.IncentiveRecord) error {
	for _, r := range recs {
		if err := tv.parent.appendLocked(r); err != nil {
			return err
		}
	}
	return nil
}

func (tv *txMemoryView) Query(_ context.Context, f generic.Filter) ([]generic.IncentiveRecord, error) {
	return tv.parent.queryLocked(f), nil
}
