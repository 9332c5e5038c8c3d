package store

import (
	"sort"

	"dwetl/internal/model"
)

// MemoryStore keeps collections in process memory. It is the store used by
// tests and by runs that do not need persistence.
type MemoryStore struct {
	keyedStore
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.kv = &memKV{
		docs: make(map[string]map[string]model.Document),
		idx:  make(map[string]map[string]Index),
	}
	return s
}

type memKV struct {
	docs map[string]map[string]model.Document
	idx  map[string]map[string]Index
}

func (m *memKV) get(coll, key string) (model.Document, bool, error) {
	d, ok := m.docs[coll][key]
	return d, ok, nil
}

func (m *memKV) put(coll, key string, doc model.Document) error {
	c, ok := m.docs[coll]
	if !ok {
		c = make(map[string]model.Document)
		m.docs[coll] = c
	}
	c[key] = doc
	return nil
}

func (m *memKV) scan(coll string, fn func(string, model.Document) error) error {
	c := m.docs[coll]
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, c[k]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memKV) deleteAll(coll string) (int64, error) {
	n := int64(len(m.docs[coll]))
	delete(m.docs, coll)
	return n, nil
}

func (m *memKV) indexes(coll string) ([]Index, error) {
	out := make([]Index, 0, len(m.idx[coll]))
	for _, ix := range m.idx[coll] {
		out = append(out, ix)
	}
	return out, nil
}

func (m *memKV) putIndex(coll string, ix Index) error {
	c, ok := m.idx[coll]
	if !ok {
		c = make(map[string]Index)
		m.idx[coll] = c
	}
	c[ix.Name] = ix
	return nil
}

func (m *memKV) deleteIndex(coll, name string) (bool, error) {
	if _, ok := m.idx[coll][name]; !ok {
		return false, nil
	}
	delete(m.idx[coll], name)
	return true, nil
}

func (m *memKV) close() error { return nil }
