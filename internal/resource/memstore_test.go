package resource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the controller tests.
type memStore struct {
	mu     sync.Mutex
	rows   []Record
	nextID int64
	unique []string
	failOn string
}

func newMemStore(unique ...string) *memStore {
	return &memStore{nextID: 1, unique: unique}
}

func (m *memStore) fail(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s: connection refused", op)
	}
	return nil
}

func (m *memStore) Insert(_ context.Context, _ *Schema, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("insert"); err != nil {
		return nil, err
	}
	for _, col := range m.unique {
		for _, r := range m.rows {
			if r[col] != nil && r[col] == rec[col] {
				return nil, fmt.Errorf("insert: %w", ErrDuplicate)
			}
		}
	}
	row := rec.Clone()
	row[FieldID] = m.nextID
	m.nextID++
	m.rows = append(m.rows, row)
	return row.Clone(), nil
}

func (m *memStore) match(r Record, where []Condition) bool {
	for _, c := range where {
		v := r[c.Field]
		switch c.Op {
		case OpEq:
			if v != c.Value {
				return false
			}
		case OpContains:
			s, _ := v.(string)
			if !strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(c.Value))) {
				return false
			}
		case OpIsNull:
			if v != nil {
				return false
			}
		case OpTextEq:
			if fmt.Sprint(v) != c.Value {
				return false
			}
		}
	}
	return true
}

func (m *memStore) FindMany(_ context.Context, _ *Schema, q Query) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("find"); err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range m.rows {
		if m.match(r, q.Where) {
			out = append(out, project(r, q.Fields))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range q.Sort {
			a, b := fmt.Sprint(out[i][k.Field]), fmt.Sprint(out[j][k.Field])
			if ta, ok := out[i][k.Field].(time.Time); ok {
				tb, _ := out[j][k.Field].(time.Time)
				a, b = ta.Format(time.RFC3339Nano), tb.Format(time.RFC3339Nano)
			}
			if a == b {
				continue
			}
			if k.Desc {
				return a > b
			}
			return a < b
		}
		return false
	})
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []Record{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, _ *Schema, where []Condition) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("count"); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range m.rows {
		if m.match(r, where) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) FindOne(_ context.Context, _ *Schema, where []Condition, fields []string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("find"); err != nil {
		return nil, err
	}
	for _, r := range m.rows {
		if m.match(r, where) {
			return project(r, fields), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) Update(_ context.Context, _ *Schema, id int64, changes Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("update"); err != nil {
		return nil, err
	}
	for _, r := range m.rows {
		if rid, _ := r.ID(); rid == id {
			for k, v := range changes {
				r[k] = v
			}
			return r.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) Delete(_ context.Context, _ *Schema, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if rid, _ := r.ID(); rid == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// raw returns the stored row with numeric id, bypassing visibility rules.
func (m *memStore) raw(id int64) Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if rid, _ := r.ID(); rid == id {
			return r.Clone()
		}
	}
	return nil
}

func project(r Record, fields []string) Record {
	if len(fields) == 0 {
		return r.Clone()
	}
	out := Record{}
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	return out
}
