package geometry

// CategoryMapper remaps raw category ids of a named dataset to contiguous
// ids. ok is false when no mapping applies and the raw id should be kept.
type CategoryMapper interface {
	Map(dataset string, raw int) (id int, ok bool)
}

// StaticMapper maps dataset name to a raw -> contiguous id table
type StaticMapper map[string]map[int]int

// Map looks up raw in the dataset's table
func (m StaticMapper) Map(dataset string, raw int) (int, bool) {
	table, ok := m[dataset]
	if !ok {
		return 0, false
	}
	id, ok := table[raw]
	return id, ok
}

// MapOrRaw applies m, falling back to raw. A nil mapper keeps raw.
func MapOrRaw(m CategoryMapper, dataset string, raw int) (int, bool) {
	if m == nil {
		return raw, false
	}
	if id, ok := m.Map(dataset, raw); ok {
		return id, true
	}
	return raw, false
}
