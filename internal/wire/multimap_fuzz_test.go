package wire

import (
	"testing"
	"unicode/utf8"
)

// FuzzMultiMapAddGet fuzzes MultiMap.Add/Get with random keys and values,
// ported from the teacher's test/fuzzy/headers_fuzz_test.go
// FuzzHeaders_SetGet onto this package's ordered multimap.
func FuzzMultiMapAddGet(f *testing.F) {
	f.Add("content-type", "application/json")
	f.Add("Content-Type", "text/html")
	f.Add("x-custom", "value")
	f.Add("", "")
	f.Add("UPPERCASE", "VALUE")

	f.Fuzz(func(t *testing.T, key, value string) {
		if !utf8.ValidString(key) || !utf8.ValidString(value) {
			t.Skip("invalid UTF-8")
		}
		if len(key) > 10000 || len(value) > 100000 {
			t.Skip("input too long")
		}

		m := NewMultiMap()
		m.Add(key, value)

		if got := m.Get(key); got != value {
			t.Errorf("Get(%q) = %q, want %q", key, got, value)
		}
		if !m.Has(key) {
			t.Errorf("Has(%q) = false after Add", key)
		}
	})
}

// FuzzMultiMapMultipleKeys fuzzes multi-key insertion order, ported from
// FuzzHeaders_MultipleOperations.
func FuzzMultiMapMultipleKeys(f *testing.F) {
	f.Add("key1", "value1", "key2", "value2")
	f.Add("", "", "", "")
	f.Add("same", "value1", "same", "value2")

	f.Fuzz(func(t *testing.T, k1, v1, k2, v2 string) {
		if !utf8.ValidString(k1) || !utf8.ValidString(v1) || !utf8.ValidString(k2) || !utf8.ValidString(v2) {
			t.Skip("invalid UTF-8")
		}
		if len(k1) > 1000 || len(v1) > 10000 || len(k2) > 1000 || len(v2) > 10000 {
			t.Skip("input too long")
		}

		m := NewMultiMap()
		m.Add(k1, v1)
		m.Add(k2, v2)

		if !m.Has(k1) || !m.Has(k2) {
			t.Errorf("expected both keys present: %q %q", k1, k2)
		}
		if m.Len() > 2 {
			t.Errorf("Len() = %d, want at most 2 distinct keys", m.Len())
		}
		if k1 == k2 {
			vs := m.Values(k1)
			if len(vs) != 2 || vs[0] != v1 || vs[1] != v2 {
				t.Errorf("Values(%q) = %v, want [%q %q]", k1, vs, v1, v2)
			}
		}
	})
}

// FuzzMultiMapReset fuzzes reset reuse, verifying a reset map behaves as
// empty regardless of what was added before it.
func FuzzMultiMapReset(f *testing.F) {
	f.Add("key", "value")
	f.Add("", "")

	f.Fuzz(func(t *testing.T, key, value string) {
		if !utf8.ValidString(key) || !utf8.ValidString(value) {
			t.Skip("invalid UTF-8")
		}
		if len(key) > 1000 || len(value) > 10000 {
			t.Skip("input too long")
		}

		m := NewMultiMap()
		m.Add(key, value)
		m.reset()

		if m.Len() != 0 {
			t.Errorf("Len() = %d after reset, want 0", m.Len())
		}
		if key != "" && m.Has(key) {
			t.Errorf("Has(%q) = true after reset", key)
		}
	})
}
