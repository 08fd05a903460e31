package wire

// MultiMap is an ordered, multi-valued string map. Keys preserve the order of
// their first occurrence; values for a repeated key accumulate in arrival
// order. It backs both the header table and the decoded query-string table,
// mirroring the insertion-order semantics the data model requires.
type MultiMap struct {
	keys   []string
	values map[string][]string
}

// NewMultiMap creates an empty MultiMap.
func NewMultiMap() MultiMap {
	return MultiMap{}
}

// Add appends a value for key, registering key in the key order on first use.
func (m *MultiMap) Add(key, value string) {
	if m.values == nil {
		m.values = make(map[string][]string, 8)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = append(m.values[key], value)
}

// Get returns the first value for key, or "" if absent.
func (m *MultiMap) Get(key string) string {
	vs := m.values[key]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values for key in arrival order.
func (m *MultiMap) Values(key string) []string {
	return m.values[key]
}

// Has reports whether key has at least one value.
func (m *MultiMap) Has(key string) bool {
	return len(m.values[key]) > 0
}

// Keys returns the distinct keys in first-occurrence order.
func (m *MultiMap) Keys() []string {
	return m.keys
}

// Len returns the number of distinct keys.
func (m *MultiMap) Len() int {
	return len(m.keys)
}

// Each invokes fn once per (key, value) pair, in key-arrival then
// value-arrival order, matching how the header/query tables are specified
// to preserve insertion order.
func (m *MultiMap) Each(fn func(key, value string)) {
	for _, k := range m.keys {
		for _, v := range m.values[k] {
			fn(k, v)
		}
	}
}

// reset clears the map for reuse without discarding the backing storage,
// so a RequestContext can be recycled across pipelined requests.
func (m *MultiMap) reset() {
	m.keys = m.keys[:0]
	for k := range m.values {
		delete(m.values, k)
	}
}
