// Package namespace tracks the set of namespaces the runtime has ever seen
// (created explicitly, published to, or subscribed on) — a small
// persisted registry used only by the
// admin/introspection surface (internal/server/grpc, internal/server/http).
// A namespace is just a string scoping key, so there is nothing to
// configure per-namespace here, only a first-seen record.
package namespace

import (
	"encoding/json"
	"time"

	pebblestore "github.com/rzbill/rocketspeed/internal/storage/pebble"
)

// Meta records when a namespace was first recorded by Touch.
type Meta struct {
	Name          string `json:"name"`
	FirstSeenAtMs int64  `json:"firstSeenAtMs"`
}

var nsMetaPrefix = []byte("nsmeta/")

func nsMetaKey(ns string) []byte {
	k := make([]byte, 0, len(nsMetaPrefix)+len(ns))
	k = append(k, nsMetaPrefix...)
	k = append(k, ns...)
	return k
}

// Touch records ns as seen if this is the first time, returning the
// (possibly just-created) Meta. Idempotent: a namespace already on record
// keeps its original FirstSeenAtMs.
func Touch(db *pebblestore.DB, ns string) (Meta, error) {
	key := nsMetaKey(ns)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
	}
	m := Meta{Name: ns, FirstSeenAtMs: time.Now().UnixMilli()}
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, b); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// List returns every namespace the registry has on record, in key order
// (which is lexicographic on name, since the prefix is fixed-length).
func List(db *pebblestore.DB) ([]Meta, error) {
	it, err := db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Meta
	for ok := it.First(); ok; ok = it.Next() {
		key := it.Key()
		if len(key) <= len(nsMetaPrefix) || string(key[:len(nsMetaPrefix)]) != string(nsMetaPrefix) {
			continue
		}
		var m Meta
		if err := json.Unmarshal(it.Value(), &m); err == nil {
			out = append(out, m)
		}
	}
	return out, nil
}
