/*
Package sqlite provides a SQLite-backed implementation of docstore.Store.

PURPOSE:
  Persists documents in a single table keyed by id, with a revision
  counter enforcing compare-and-swap semantics at the SQL level. The
  same patterns apply to PostgreSQL - only minor dialect differences.

CAS ENFORCEMENT:
  Creates:  INSERT ... (rejected by the primary key when the id exists)
  Updates:  UPDATE ... WHERE id = ? AND rev = ?  - zero rows affected
            means the caller lost a race and gets ErrRevConflict.

CHANGE NOTIFICATIONS:
  SQLite has no push channel, so notifications are delivered by an
  in-process fan-out after each successful write. This matches the
  engine's deployment model: a single embedded process owns the file.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/stock.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - docstore/store.go: Interface definition
  - docstore/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openshelf/stock-engine/docstore"
)

// Store implements docstore.Store on a SQLite database.
type Store struct {
	db       *sql.DB
	notifier *docstore.Notifier
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, notifier: docstore.NewNotifier()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id   TEXT PRIMARY KEY,
		rev  INTEGER NOT NULL,
		data TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (docstore.Document, error) {
	var doc docstore.Document
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, rev, data FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Rev, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, err
	}
	doc.Data = []byte(data)
	return doc, nil
}

func (s *Store) Put(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	stored := docstore.Document{ID: doc.ID, Rev: doc.Rev + 1, Data: doc.Data}

	if doc.Rev == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO documents (id, rev, data) VALUES (?, 1, ?)`,
			doc.ID, string(doc.Data))
		if err != nil {
			if isUniqueConstraintError(err) {
				return docstore.Document{}, docstore.ErrRevConflict
			}
			return docstore.Document{}, err
		}
	} else {
		res, err := s.db.ExecContext(ctx,
			`UPDATE documents SET rev = rev + 1, data = ? WHERE id = ? AND rev = ?`,
			string(doc.Data), doc.ID, doc.Rev)
		if err != nil {
			return docstore.Document{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return docstore.Document{}, err
		}
		if n == 0 {
			return docstore.Document{}, docstore.ErrRevConflict
		}
	}

	s.notifier.Broadcast(docstore.Change{ID: stored.ID, Rev: stored.Rev})
	return stored, nil
}

func (s *Store) Delete(ctx context.Context, id string, rev int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE id = ? AND rev = ?`, id, rev)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either absent (a no-op) or a lost race.
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM documents WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return docstore.ErrRevConflict
		}
		return nil
	}

	s.notifier.Broadcast(docstore.Change{ID: id, Rev: rev, Deleted: true})
	return nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rev, data FROM documents WHERE id LIKE ? ESCAPE '\' ORDER BY id`,
		escapeLike(q.Prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []docstore.Document
	for rows.Next() {
		var doc docstore.Document
		var data string
		if err := rows.Scan(&doc.ID, &doc.Rev, &data); err != nil {
			return nil, err
		}
		doc.Data = []byte(data)
		if q.Match != nil && !q.Match(doc) {
			continue
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

func (s *Store) Watch(fn func(docstore.Change)) (cancel func()) {
	return s.notifier.Watch(fn)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// escapeLike escapes LIKE metacharacters so a prefix is matched literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
