package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-sqlite3"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// SqliteCollection stores one collection's BSON documents in a SQLite
// database. Several collections may share a database file.
//
// Tables:
//
//	documents(seq, collection, key, data)  UNIQUE (collection, key)
//
// seq preserves insertion order; key is the encoded "_id".
type SqliteCollection struct {
	mu   sync.RWMutex
	db   *sql.DB
	name string
}

func NewSqliteCollection(dbPath, name string) (*SqliteCollection, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		data BLOB NOT NULL,
		UNIQUE (collection, key)
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteCollection{db: db, name: name}, nil
}

func (s *SqliteCollection) Close(context.Context) error {
	return s.db.Close()
}

func (s *SqliteCollection) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SqliteCollection) Find(ctx context.Context) ([]bson.Raw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM documents WHERE collection = ? ORDER BY seq", s.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []bson.Raw
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, bson.Raw(data))
	}
	return out, rows.Err()
}

func (s *SqliteCollection) FindOne(ctx context.Context, filter bson.D) (bson.Raw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, raw, err := s.findMatch(ctx, s.db, filter)
	return raw, err
}

func (s *SqliteCollection) InsertOne(ctx context.Context, doc bson.Raw) (*InsertOneResult, error) {
	raw, id, err := withID(doc)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insert(ctx, s.db, 0, raw, id); err != nil {
		return nil, err
	}
	return &InsertOneResult{InsertedID: idValue(id)}, nil
}

// InsertMany runs in one transaction, so a failed batch leaves nothing behind.
func (s *SqliteCollection) InsertMany(ctx context.Context, docs []bson.Raw) (*InsertManyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res := &InsertManyResult{InsertedIDs: make([]any, 0, len(docs))}
	for i, doc := range docs {
		raw, id, err := withID(doc)
		if err != nil {
			return nil, err
		}
		if err := s.insert(ctx, tx, i, raw, id); err != nil {
			return nil, err
		}
		res.InsertedIDs = append(res.InsertedIDs, idValue(id))
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SqliteCollection) DeleteOne(ctx context.Context, filter bson.D) (*DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, raw, err := s.findMatch(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &DeleteResult{}, nil
	}
	r, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE seq = ?", seq)
	if err != nil {
		return nil, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: n}, nil
}

func (s *SqliteCollection) UpdateOne(ctx context.Context, filter, update bson.D) (*UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	seq, raw, err := s.findMatch(ctx, tx, filter)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &UpdateResult{}, nil
	}
	updated, modified, err := applyUpdate(raw, update)
	if err != nil {
		return nil, err
	}
	res := &UpdateResult{MatchedCount: 1}
	if modified {
		if _, err := tx.ExecContext(ctx, "UPDATE documents SET data = ? WHERE seq = ?", []byte(updated), seq); err != nil {
			return nil, err
		}
		res.ModifiedCount = 1
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SqliteCollection) insert(ctx context.Context, q querier, index int, raw bson.Raw, id bson.RawValue) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO documents (collection, key, data) VALUES (?, ?, ?)",
		s.name, docKey(id), []byte(raw),
	)
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return &WriteException{WriteErrors: []WriteError{duplicateKey(index, s.name, id)}}
	}
	return err
}

// findMatch returns the seq and document of the first match, or a nil
// document when nothing matches.
func (s *SqliteCollection) findMatch(ctx context.Context, q querier, filter bson.D) (int64, bson.Raw, error) {
	if err := checkFilter(filter); err != nil {
		return 0, nil, err
	}
	key, byKey, err := filterKey(filter)
	if err != nil {
		return 0, nil, err
	}
	if byKey {
		var seq int64
		var data []byte
		err := q.QueryRowContext(ctx,
			"SELECT seq, data FROM documents WHERE collection = ? AND key = ?",
			s.name, key,
		).Scan(&seq, &data)
		if err == sql.ErrNoRows {
			return 0, nil, nil
		}
		if err != nil {
			return 0, nil, err
		}
		return seq, bson.Raw(data), nil
	}

	rows, err := q.QueryContext(ctx, "SELECT seq, data FROM documents WHERE collection = ? ORDER BY seq", s.name)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var seq int64
		var data []byte
		if err := rows.Scan(&seq, &data); err != nil {
			return 0, nil, err
		}
		ok, err := matches(bson.Raw(data), filter)
		if err != nil {
			return 0, nil, err
		}
		if ok {
			return seq, bson.Raw(data), nil
		}
	}
	return 0, nil, rows.Err()
}
