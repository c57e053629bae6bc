package store

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryCollection keeps documents in memory in insertion order. Data is lost
// on restart. Safe for concurrent use.
type MemoryCollection struct {
	mu   sync.RWMutex
	name string
	docs []memDoc
}

type memDoc struct {
	key string
	raw bson.Raw
}

func NewMemoryCollection(name string) *MemoryCollection {
	return &MemoryCollection{name: name}
}

func (m *MemoryCollection) Find(ctx context.Context) ([]bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bson.Raw, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, clone(d.raw))
	}
	return out, nil
}

func (m *MemoryCollection) FindOne(ctx context.Context, filter bson.D) (bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, err := m.indexOf(filter)
	if err != nil || i < 0 {
		return nil, err
	}
	return clone(m.docs[i].raw), nil
}

func (m *MemoryCollection) InsertOne(ctx context.Context, doc bson.Raw) (*InsertOneResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, id, err := withID(doc)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := docKey(id)
	if m.contains(key) {
		return nil, &WriteException{WriteErrors: []WriteError{duplicateKey(0, m.name, id)}}
	}
	m.docs = append(m.docs, memDoc{key: key, raw: clone(raw)})
	return &InsertOneResult{InsertedID: idValue(id)}, nil
}

// InsertMany is all-or-nothing: a duplicate key anywhere in the batch rejects
// the whole batch.
func (m *MemoryCollection) InsertMany(ctx context.Context, docs []bson.Raw) (*InsertManyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch := make([]memDoc, 0, len(docs))
	ids := make([]bson.RawValue, 0, len(docs))
	for _, doc := range docs {
		raw, id, err := withID(doc)
		if err != nil {
			return nil, err
		}
		batch = append(batch, memDoc{key: docKey(id), raw: clone(raw)})
		ids = append(ids, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool, len(batch))
	for i, d := range batch {
		if seen[d.key] || m.contains(d.key) {
			return nil, &WriteException{WriteErrors: []WriteError{duplicateKey(i, m.name, ids[i])}}
		}
		seen[d.key] = true
	}
	m.docs = append(m.docs, batch...)

	res := &InsertManyResult{InsertedIDs: make([]any, 0, len(ids))}
	for _, id := range ids {
		res.InsertedIDs = append(res.InsertedIDs, idValue(id))
	}
	return res, nil
}

func (m *MemoryCollection) DeleteOne(ctx context.Context, filter bson.D) (*DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.indexOf(filter)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return &DeleteResult{}, nil
	}
	m.docs = append(m.docs[:i], m.docs[i+1:]...)
	return &DeleteResult{DeletedCount: 1}, nil
}

func (m *MemoryCollection) UpdateOne(ctx context.Context, filter, update bson.D) (*UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.indexOf(filter)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return &UpdateResult{}, nil
	}
	raw, modified, err := applyUpdate(m.docs[i].raw, update)
	if err != nil {
		return nil, err
	}
	res := &UpdateResult{MatchedCount: 1}
	if modified {
		m.docs[i].raw = raw
		res.ModifiedCount = 1
	}
	return res, nil
}

func (m *MemoryCollection) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryCollection) Close(context.Context) error { return nil }

// indexOf returns the position of the first match, or -1. Callers hold mu.
func (m *MemoryCollection) indexOf(filter bson.D) (int, error) {
	if err := checkFilter(filter); err != nil {
		return -1, err
	}
	if key, ok, err := filterKey(filter); err != nil {
		return -1, err
	} else if ok {
		for i, d := range m.docs {
			if d.key == key {
				return i, nil
			}
		}
		return -1, nil
	}
	for i, d := range m.docs {
		ok, err := matches(d.raw, filter)
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

func (m *MemoryCollection) contains(key string) bool {
	for _, d := range m.docs {
		if d.key == key {
			return true
		}
	}
	return false
}
