package dml

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/statement"
	"github.com/roach88/gqlbridge/internal/wire"
)

// Store is the remote surface writes need.
type Store interface {
	Lookup(ctx context.Context, keys []ir.Key) ([]wire.EntityResult, error)
	Commit(ctx context.Context, mutations []wire.Mutation) ([]wire.MutationResult, error)
	Partition() *wire.PartitionID
}

// ErrInvalidKey is returned when a key column holds neither an integer id
// nor a string name.
var ErrInvalidKey = errors.New("key must be an integer id or a string name")

// Result reports the outcome of a write.
//
// LastKey is the key of the last inserted entity, store-assigned or not.
// LastRowID is its integer id, or 0 when the key has a name.
type Result struct {
	RowCount  int64
	LastKey   ir.Key
	LastRowID int64
}

// Executor maps INSERT, UPDATE and DELETE onto single-entity operations.
type Executor struct {
	store  Store
	dec    *wire.Decoder
	logger *slog.Logger
}

// New creates an Executor.
func New(store Store, dec *wire.Decoder, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, dec: dec, logger: logger}
}

// Insert writes one entity per row. A bound key column supplies the
// entity's id or name; otherwise the store allocates an id.
func (e *Executor) Insert(ctx context.Context, ins *queryir.Insert) (*Result, error) {
	mutations := make([]wire.Mutation, 0, len(ins.Rows))
	keys := make([]ir.Key, 0, len(ins.Rows))
	for i, row := range ins.Rows {
		key := ir.Key{{Kind: ins.Kind}}
		props := ir.Entity{}
		for j, col := range ins.Columns {
			if statement.IsKeyColumn(col) {
				elem, err := keyElement(ins.Kind, row[j])
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", i, err)
				}
				key[0] = elem
				continue
			}
			props[col] = row[j]
		}
		entity, err := e.encode(key, props)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		mutations = append(mutations, wire.Mutation{Upsert: entity})
		keys = append(keys, key)
	}

	results, err := e.store.Commit(ctx, mutations)
	if err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}

	res := &Result{RowCount: int64(len(mutations))}
	if len(keys) > 0 {
		last := keys[len(keys)-1]
		if n := len(results); n == len(keys) && results[n-1].Key != nil {
			allocated, err := wire.KeyToIR(results[n-1].Key)
			if err != nil {
				return nil, fmt.Errorf("allocated key: %w", err)
			}
			last = allocated
		}
		res.LastKey = last
		res.LastRowID = last.Last().ID
	}
	e.logger.Debug("insert committed", "kind", ins.Kind, "rows", res.RowCount, "last_key", res.LastKey.String())
	return res, nil
}

// Update reads the entity, merges the assignments and writes it back, so
// properties the statement does not mention are preserved. A missing
// entity affects no rows.
func (e *Executor) Update(ctx context.Context, up *queryir.Update) (*Result, error) {
	key, err := entityKey(up.Kind, up.KeyValue)
	if err != nil {
		return nil, err
	}
	found, err := e.store.Lookup(ctx, []ir.Key{key})
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}
	if len(found) == 0 {
		e.logger.Debug("update matched no entity", "key", key.String())
		return &Result{}, nil
	}

	current, err := e.dec.Properties(found[0].Entity.Properties)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	merged := maps.Clone(current)
	if merged == nil {
		merged = ir.Entity{}
	}
	for _, a := range up.Set {
		merged[a.Column] = a.Value
	}

	entity, err := e.encode(key, merged)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.Commit(ctx, []wire.Mutation{{Update: entity}}); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return &Result{RowCount: 1}, nil
}

// Delete removes the entity. A missing entity affects no rows.
func (e *Executor) Delete(ctx context.Context, del *queryir.Delete) (*Result, error) {
	key, err := entityKey(del.Kind, del.KeyValue)
	if err != nil {
		return nil, err
	}
	found, err := e.store.Lookup(ctx, []ir.Key{key})
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}
	if len(found) == 0 {
		return &Result{}, nil
	}
	if _, err := e.store.Commit(ctx, []wire.Mutation{{Delete: wire.KeyFromIR(key, e.store.Partition())}}); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return &Result{RowCount: 1}, nil
}

func (e *Executor) encode(key ir.Key, props ir.Entity) (*wire.Entity, error) {
	wprops, err := wire.EncodeProperties(props)
	if err != nil {
		return nil, err
	}
	return &wire.Entity{Key: wire.KeyFromIR(key, e.store.Partition()), Properties: wprops}, nil
}

func entityKey(kind string, v ir.Value) (ir.Key, error) {
	elem, err := keyElement(kind, v)
	if err != nil {
		return nil, err
	}
	if !elem.Complete() {
		return nil, fmt.Errorf("%w: got NULL", ErrInvalidKey)
	}
	return ir.Key{elem}, nil
}

func keyElement(kind string, v ir.Value) (ir.PathElement, error) {
	elem := ir.PathElement{Kind: kind}
	switch val := v.(type) {
	case ir.Int:
		if val <= 0 {
			return elem, fmt.Errorf("%w: id %d is not positive", ErrInvalidKey, val)
		}
		elem.ID = int64(val)
	case ir.String:
		if val == "" {
			return elem, fmt.Errorf("%w: empty name", ErrInvalidKey)
		}
		elem.Name = string(val)
	case nil, ir.Null:
	default:
		return elem, fmt.Errorf("%w: got %s", ErrInvalidKey, ir.TypeOf(v))
	}
	return elem, nil
}
