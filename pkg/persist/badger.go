// Package persist stores corpus snapshots in BadgerDB. One snapshot
// directory holds the interner, the node annotations, the component list
// and every component's edges and edge labels under distinct key
// prefixes. The on-disk layout is this module's own; it is not compatible
// with any external format.
package persist

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
)

// Key prefixes of the snapshot layout.
const (
	prefixMeta      = "m:"
	prefixString    = "s:"
	prefixAnno      = "a:"
	prefixComponent = "c:"
	prefixEdge      = "e:"
	prefixEdgeAnno  = "ea:"
)

func openSnapshot(dir string, readOnly bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithReadOnly(readOnly)
	return badger.Open(opts)
}

func u32Key(prefix string, parts ...uint32) []byte {
	key := make([]byte, len(prefix)+4*len(parts))
	copy(key, prefix)
	for i, p := range parts {
		binary.BigEndian.PutUint32(key[len(prefix)+4*i:], p)
	}
	return key
}

// Save writes a snapshot of the corpus into dir.
func Save(db *corpus.DB, dir string) error {
	store, err := openSnapshot(dir, false)
	if err != nil {
		return fmt.Errorf("open snapshot %s: %w", dir, err)
	}
	defer store.Close()

	if err := store.DropAll(); err != nil {
		return fmt.Errorf("reset snapshot: %w", err)
	}

	batch := store.NewWriteBatch()
	defer batch.Cancel()

	if err := batch.Set([]byte(prefixMeta+"name"), []byte(db.Name)); err != nil {
		return err
	}

	var saveErr error
	db.Strings.Each(func(id graph.StringID, value string) bool {
		saveErr = batch.Set(u32Key(prefixString, uint32(id)), []byte(value))
		return saveErr == nil
	})
	if saveErr != nil {
		return saveErr
	}

	db.NodeAnnos.Each(func(node graph.NodeID, anno graph.Annotation) bool {
		key := u32Key(prefixAnno, uint32(node), uint32(anno.Name), uint32(anno.NS))
		value := make([]byte, 4)
		binary.BigEndian.PutUint32(value, uint32(anno.Value))
		saveErr = batch.Set(key, value)
		return saveErr == nil
	})
	if saveErr != nil {
		return saveErr
	}

	for compIdx, component := range db.AllComponents() {
		meta := fmt.Sprintf("%d\x00%s\x00%s", int(component.Type), component.Layer, component.Name)
		if err := batch.Set(u32Key(prefixComponent, uint32(compIdx)), []byte(meta)); err != nil {
			return err
		}

		storage, ok := db.GetStorage(component)
		if !ok {
			continue
		}
		storage.EachEdge(func(e graph.Edge) bool {
			key := u32Key(prefixEdge, uint32(compIdx), uint32(e.Source), uint32(e.Target))
			if saveErr = batch.Set(key, nil); saveErr != nil {
				return false
			}
			for _, anno := range storage.EdgeAnnotations(e) {
				annoKey := u32Key(prefixEdgeAnno,
					uint32(compIdx), uint32(e.Source), uint32(e.Target),
					uint32(anno.Name), uint32(anno.NS))
				value := make([]byte, 4)
				binary.BigEndian.PutUint32(value, uint32(anno.Value))
				if saveErr = batch.Set(annoKey, value); saveErr != nil {
					return false
				}
			}
			return true
		})
		if saveErr != nil {
			return saveErr
		}
	}

	return batch.Flush()
}

// Load reads a snapshot from dir into a fresh corpus DB. Statistics are
// not part of the snapshot; call Optimize on the result before querying.
func Load(dir string) (*corpus.DB, error) {
	store, err := openSnapshot(dir, true)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", graph.ErrCorpusLoad, dir, err)
	}
	defer store.Close()

	db := corpus.NewDB("")
	components := make(map[uint32]graph.Component)

	err = store.View(func(txn *badger.Txn) error {
		if item, err := txn.Get([]byte(prefixMeta + "name")); err == nil {
			_ = item.Value(func(val []byte) error {
				db.Name = string(val)
				return nil
			})
		}

		if err := loadStrings(txn, db); err != nil {
			return err
		}
		if err := loadAnnotations(txn, db); err != nil {
			return err
		}
		if err := loadComponents(txn, components); err != nil {
			return err
		}
		if err := loadEdges(txn, db, components); err != nil {
			return err
		}
		return loadEdgeAnnotations(txn, db, components)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", graph.ErrCorpusLoad, dir, err)
	}
	return db, nil
}

func iterPrefix(txn *badger.Txn, prefix string, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(key[len(prefix):], value); err != nil {
			return err
		}
	}
	return nil
}

func loadStrings(txn *badger.Txn, db *corpus.DB) error {
	return iterPrefix(txn, prefixString, func(key, value []byte) error {
		if len(key) != 4 {
			return fmt.Errorf("malformed string key")
		}
		db.Strings.AddWithID(graph.StringID(binary.BigEndian.Uint32(key)), string(value))
		return nil
	})
}

func loadAnnotations(txn *badger.Txn, db *corpus.DB) error {
	return iterPrefix(txn, prefixAnno, func(key, value []byte) error {
		if len(key) != 12 || len(value) != 4 {
			return fmt.Errorf("malformed annotation entry")
		}
		node := graph.NodeID(binary.BigEndian.Uint32(key))
		db.NodeAnnos.Add(node, graph.Annotation{
			Name:  graph.StringID(binary.BigEndian.Uint32(key[4:])),
			NS:    graph.StringID(binary.BigEndian.Uint32(key[8:])),
			Value: graph.StringID(binary.BigEndian.Uint32(value)),
		})
		return nil
	})
}

func loadComponents(txn *badger.Txn, components map[uint32]graph.Component) error {
	return iterPrefix(txn, prefixComponent, func(key, value []byte) error {
		if len(key) != 4 {
			return fmt.Errorf("malformed component key")
		}
		var ctype int
		var layer, name string
		parts := splitMeta(string(value))
		if len(parts) != 3 {
			return fmt.Errorf("malformed component meta %q", value)
		}
		if _, err := fmt.Sscanf(parts[0], "%d", &ctype); err != nil {
			return err
		}
		layer, name = parts[1], parts[2]
		components[binary.BigEndian.Uint32(key)] = graph.Component{
			Type: graph.ComponentType(ctype), Layer: layer, Name: name,
		}
		return nil
	})
}

func splitMeta(meta string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(meta); i++ {
		if meta[i] == 0 {
			parts = append(parts, meta[start:i])
			start = i + 1
		}
	}
	return append(parts, meta[start:])
}

func loadEdges(txn *badger.Txn, db *corpus.DB, components map[uint32]graph.Component) error {
	return iterPrefix(txn, prefixEdge, func(key, _ []byte) error {
		if len(key) != 12 {
			return fmt.Errorf("malformed edge key")
		}
		component, ok := components[binary.BigEndian.Uint32(key)]
		if !ok {
			return fmt.Errorf("edge references unknown component")
		}
		db.EnsureComponent(component).AddEdge(graph.Edge{
			Source: graph.NodeID(binary.BigEndian.Uint32(key[4:])),
			Target: graph.NodeID(binary.BigEndian.Uint32(key[8:])),
		})
		return nil
	})
}

func loadEdgeAnnotations(txn *badger.Txn, db *corpus.DB, components map[uint32]graph.Component) error {
	return iterPrefix(txn, prefixEdgeAnno, func(key, value []byte) error {
		if len(key) != 20 || len(value) != 4 {
			return fmt.Errorf("malformed edge annotation entry")
		}
		component, ok := components[binary.BigEndian.Uint32(key)]
		if !ok {
			return fmt.Errorf("edge annotation references unknown component")
		}
		edge := graph.Edge{
			Source: graph.NodeID(binary.BigEndian.Uint32(key[4:])),
			Target: graph.NodeID(binary.BigEndian.Uint32(key[8:])),
		}
		db.EnsureComponent(component).AddEdgeAnnotation(edge, graph.Annotation{
			Name:  graph.StringID(binary.BigEndian.Uint32(key[12:])),
			NS:    graph.StringID(binary.BigEndian.Uint32(key[16:])),
			Value: graph.StringID(binary.BigEndian.Uint32(value)),
		})
		return nil
	})
}
