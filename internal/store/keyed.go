package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"dwetl/internal/model"
)

// kv is the raw storage behind keyedStore. Keys are canonical filter
// encodings, unique per collection.
type kv interface {
	get(coll, key string) (model.Document, bool, error)
	put(coll, key string, doc model.Document) error
	scan(coll string, fn func(key string, doc model.Document) error) error
	deleteAll(coll string) (int64, error)
	indexes(coll string) ([]Index, error)
	putIndex(coll string, ix Index) error
	deleteIndex(coll, name string) (bool, error)
	close() error
}

// keyedStore implements Store over a kv. Writes are serialized so the
// read-modify-write of an upsert is atomic per store.
type keyedStore struct {
	mu sync.RWMutex
	kv kv

	// uniq caches unique-index values per collection: index name, then
	// value tuple, then document key. Built on first use, guarded by mu.
	uniq map[string]map[string]map[string]string
}

func (s *keyedStore) Upsert(ctx context.Context, coll string, filter, doc model.Document) (UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return UpsertResult{}, err
	}
	if err := checkFilter(filter); err != nil {
		return UpsertResult{}, err
	}
	key, err := canonical(filter)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("encode key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, found, err := s.kv.get(coll, string(key))
	if err != nil {
		return UpsertResult{}, fmt.Errorf("get %s: %w", coll, err)
	}
	next := merge(cur, filter, doc)
	if found && sameDocument(cur, next) {
		return UpsertResult{Matched: true}, nil
	}
	unique, err := s.checkUnique(coll, string(key), next)
	if err != nil {
		return UpsertResult{}, err
	}
	if err := s.kv.put(coll, string(key), next); err != nil {
		return UpsertResult{}, fmt.Errorf("put %s: %w", coll, err)
	}
	s.trackUnique(coll, string(key), unique, cur, next)
	return UpsertResult{Inserted: !found, Matched: found, Modified: found}, nil
}

func (s *keyedStore) Count(ctx context.Context, coll string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	err := s.kv.scan(coll, func(string, model.Document) error {
		n++
		return nil
	})
	return n, err
}

func (s *keyedStore) DeleteAll(ctx context.Context, coll string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uniq, coll)
	return s.kv.deleteAll(coll)
}

func (s *keyedStore) CreateIndex(ctx context.Context, coll string, ix Index) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ix = ix.withName()
	if err := checkIndex(ix); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.kv.indexes(coll)
	if err != nil {
		return "", err
	}
	for _, e := range existing {
		if e.Name == ix.Name {
			return ix.Name, nil
		}
	}
	if ix.Unique {
		seen := map[string]bool{}
		err := s.kv.scan(coll, func(_ string, doc model.Document) error {
			t, ok := indexTuple(ix, doc)
			if !ok {
				return nil
			}
			if seen[t] {
				return fmt.Errorf("%w: index %s on %s", ErrDuplicateKey, ix.Name, coll)
			}
			seen[t] = true
			return nil
		})
		if err != nil {
			return "", err
		}
	}
	if err := s.kv.putIndex(coll, ix); err != nil {
		return "", fmt.Errorf("create index %s: %w", ix.Name, err)
	}
	delete(s.uniq, coll)
	return ix.Name, nil
}

func (s *keyedStore) ListIndexes(ctx context.Context, coll string) ([]Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, err := s.kv.indexes(coll)
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	out := []Index{{Name: IDIndexName, Fields: []IndexField{{Name: "_id"}}, Unique: true}}
	return append(out, list...), nil
}

func (s *keyedStore) DropIndex(ctx context.Context, coll string, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == IDIndexName {
		return errors.New("store: cannot drop _id_ index")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.kv.deleteIndex(coll, name)
	delete(s.uniq, coll)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrIndexNotFound, coll, name)
	}
	return nil
}

// Scan visits documents in key order. fn runs without the store lock held
// and receives copies.
func (s *keyedStore) Scan(ctx context.Context, coll string, fn func(model.Document) error) error {
	s.mu.RLock()
	var docs []model.Document
	err := s.kv.scan(coll, func(_ string, doc model.Document) error {
		docs = append(docs, model.Document(cloneMap(doc)))
		return nil
	})
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func (s *keyedStore) Close() error { return s.kv.close() }

// checkUnique rejects next when another document shares its values on a
// unique index. Documents missing an indexed field are not constrained.
// It returns the collection's unique indexes for trackUnique.
func (s *keyedStore) checkUnique(coll, key string, next model.Document) ([]Index, error) {
	list, err := s.kv.indexes(coll)
	if err != nil {
		return nil, err
	}
	var unique []Index
	for _, ix := range list {
		if ix.Unique {
			unique = append(unique, ix)
		}
	}
	if len(unique) == 0 {
		return nil, nil
	}
	tuples, err := s.uniqueTuples(coll, unique)
	if err != nil {
		return nil, err
	}
	for _, ix := range unique {
		want, ok := indexTuple(ix, next)
		if !ok {
			continue
		}
		if k, taken := tuples[ix.Name][want]; taken && k != key {
			return nil, fmt.Errorf("%w: index %s on %s", ErrDuplicateKey, ix.Name, coll)
		}
	}
	return unique, nil
}

// uniqueTuples returns the cached unique-index values of coll, scanning the
// collection once when the cache is cold.
func (s *keyedStore) uniqueTuples(coll string, unique []Index) (map[string]map[string]string, error) {
	if c, ok := s.uniq[coll]; ok {
		return c, nil
	}
	c := make(map[string]map[string]string, len(unique))
	for _, ix := range unique {
		c[ix.Name] = map[string]string{}
	}
	err := s.kv.scan(coll, func(k string, doc model.Document) error {
		for _, ix := range unique {
			if t, ok := indexTuple(ix, doc); ok {
				c[ix.Name][t] = k
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.uniq == nil {
		s.uniq = map[string]map[string]map[string]string{}
	}
	s.uniq[coll] = c
	return c, nil
}

// trackUnique moves the cached values of key from cur to next after a put.
func (s *keyedStore) trackUnique(coll, key string, unique []Index, cur, next model.Document) {
	c, ok := s.uniq[coll]
	if !ok {
		return
	}
	for _, ix := range unique {
		m := c[ix.Name]
		if m == nil {
			continue
		}
		if cur != nil {
			if t, ok := indexTuple(ix, cur); ok && m[t] == key {
				delete(m, t)
			}
		}
		if t, ok := indexTuple(ix, next); ok {
			m[t] = key
		}
	}
}

func indexTuple(ix Index, doc model.Document) (string, bool) {
	vals := make([]any, 0, len(ix.Fields))
	for _, f := range ix.Fields {
		v, ok := doc[f.Name]
		if !ok || v == nil {
			return "", false
		}
		vals = append(vals, v)
	}
	b, err := canonical(vals)
	if err != nil {
		return "", false
	}
	return string(b), true
}
