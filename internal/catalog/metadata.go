package catalog

import (
	"strings"
	"sync"
)

// Metadata holds per-dataset category id tables, mapping the ids used in
// annotation files to contiguous model class ids. Dataset names are
// matched case-insensitively, since config keys arrive lower-cased.
type Metadata struct {
	mu     sync.RWMutex
	tables map[string]map[int]int
}

// NewMetadata creates metadata from dataset -> raw -> contiguous tables
func NewMetadata(tables map[string]map[int]int) *Metadata {
	m := &Metadata{tables: make(map[string]map[int]int)}
	for name, table := range tables {
		m.SetCategoryMapping(name, table)
	}
	return m
}

// SetCategoryMapping replaces the table of a dataset
func (m *Metadata) SetCategoryMapping(dataset string, table map[int]int) {
	copied := make(map[int]int, len(table))
	for k, v := range table {
		copied[k] = v
	}
	m.mu.Lock()
	m.tables[strings.ToLower(dataset)] = copied
	m.mu.Unlock()
}

// CategoryMapping returns a copy of a dataset's table
func (m *Metadata) CategoryMapping(dataset string) (map[int]int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	table, ok := m.tables[strings.ToLower(dataset)]
	if !ok {
		return nil, false
	}
	copied := make(map[int]int, len(table))
	for k, v := range table {
		copied[k] = v
	}
	return copied, true
}

// Map implements geometry.CategoryMapper
func (m *Metadata) Map(dataset string, raw int) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tables[strings.ToLower(dataset)][raw]
	return id, ok
}
