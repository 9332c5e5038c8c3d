package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"dwetl/internal/model"
)

// PebbleStore keeps collections in an embedded Pebble database. Documents
// live under doc/<collection>/<key> as BSON, index definitions under
// idx/<collection>/<name> as JSON.
type PebbleStore struct {
	keyedStore
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:             64 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    4,
		L0StopWritesThreshold:    8,
		WALBytesPerSync:          1 << 20,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	s := &PebbleStore{}
	s.kv = &pebbleKV{db: d}
	return s, nil
}

type pebbleKV struct {
	db *pebble.DB
}

func docKey(coll, key string) []byte { return []byte("doc/" + coll + "/" + key) }
func idxKey(coll, name string) []byte { return []byte("idx/" + coll + "/" + name) }

// bounds returns the [lower, upper) range covering every key under prefix
// ns/coll/.
func bounds(ns, coll string) ([]byte, []byte) {
	return []byte(ns + "/" + coll + "/"), []byte(ns + "/" + coll + "0")
}

func (p *pebbleKV) get(coll, key string) (model.Document, bool, error) {
	v, closer, err := p.db.Get(docKey(coll, key))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	doc, err := unmarshalDocument(v)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", coll, err)
	}
	return doc, true, nil
}

func (p *pebbleKV) put(coll, key string, doc model.Document) error {
	b, err := marshalDocument(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", coll, err)
	}
	return p.db.Set(docKey(coll, key), b, pebble.Sync)
}

func (p *pebbleKV) scan(coll string, fn func(string, model.Document) error) error {
	lo, hi := bounds("doc", coll)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		key := string(it.Key()[len(lo):])
		doc, err := unmarshalDocument(it.Value())
		if err != nil {
			return fmt.Errorf("decode %s: %w", coll, err)
		}
		if err := fn(key, doc); err != nil {
			return err
		}
	}
	return it.Error()
}

func (p *pebbleKV) deleteAll(coll string) (int64, error) {
	var n int64
	if err := p.scan(coll, func(string, model.Document) error {
		n++
		return nil
	}); err != nil {
		return 0, err
	}
	lo, hi := bounds("doc", coll)
	if err := p.db.DeleteRange(lo, hi, pebble.Sync); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *pebbleKV) indexes(coll string) ([]Index, error) {
	lo, hi := bounds("idx", coll)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []Index
	for it.First(); it.Valid(); it.Next() {
		var ix Index
		if err := json.Unmarshal(it.Value(), &ix); err != nil {
			return nil, fmt.Errorf("decode index: %w", err)
		}
		out = append(out, ix)
	}
	return out, it.Error()
}

func (p *pebbleKV) putIndex(coll string, ix Index) error {
	b, err := json.Marshal(ix)
	if err != nil {
		return err
	}
	return p.db.Set(idxKey(coll, ix.Name), b, pebble.Sync)
}

func (p *pebbleKV) deleteIndex(coll, name string) (bool, error) {
	_, closer, err := p.db.Get(idxKey(coll, name))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, p.db.Delete(idxKey(coll, name), pebble.Sync)
}

func (p *pebbleKV) close() error { return p.db.Close() }
