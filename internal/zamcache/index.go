package zamcache

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Index is the SQLite catalog of saved bodies: which functions have
// one, under which build token, and when it was written. The store's
// per-file token check is the authority; the index exists so the
// driver can list and prune entries without opening every file.
type Index struct {
	db *sql.DB
	mu sync.Mutex
}

// Entry is one indexed saved body.
type Entry struct {
	Func      string
	File      string
	Digest    string
	Token     string
	WrittenAt time.Time
}

// OpenIndex opens (creating if needed) the catalog database.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("zamcache: open index: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("zamcache: setting busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS bodies (
		func TEXT PRIMARY KEY,
		file TEXT NOT NULL,
		digest TEXT NOT NULL,
		token TEXT NOT NULL,
		written_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("zamcache: creating table: %w", err)
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error {
	if ix.db != nil {
		return ix.db.Close()
	}
	return nil
}

// Put records a saved body, replacing any prior entry for the function.
func (ix *Index) Put(e Entry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, err := ix.db.Exec(`INSERT INTO bodies (func, file, digest, token, written_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(func) DO UPDATE SET
			file = excluded.file,
			digest = excluded.digest,
			token = excluded.token,
			written_at = excluded.written_at`,
		e.Func, e.File, e.Digest, e.Token, e.WrittenAt.Unix())
	if err != nil {
		return fmt.Errorf("zamcache: index put %s: %w", e.Func, err)
	}
	return nil
}

// Get looks up a function's entry; a missing row reports ErrMiss.
func (ix *Index) Get(funcName string) (Entry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var e Entry
	var at int64
	err := ix.db.QueryRow(
		`SELECT func, file, digest, token, written_at FROM bodies WHERE func = ?`,
		funcName).Scan(&e.Func, &e.File, &e.Digest, &e.Token, &at)
	if err == sql.ErrNoRows {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("zamcache: index get %s: %w", funcName, err)
	}
	e.WrittenAt = time.Unix(at, 0)
	return e, nil
}

// Delete drops a function's entry. Absent rows are fine.
func (ix *Index) Delete(funcName string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, err := ix.db.Exec(`DELETE FROM bodies WHERE func = ?`, funcName); err != nil {
		return fmt.Errorf("zamcache: index delete %s: %w", funcName, err)
	}
	return nil
}

// Stale lists entries written under a different build token.
func (ix *Index) Stale(token string) ([]Entry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	rows, err := ix.db.Query(
		`SELECT func, file, digest, token, written_at FROM bodies WHERE token != ?`, token)
	if err != nil {
		return nil, fmt.Errorf("zamcache: index stale scan: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.Func, &e.File, &e.Digest, &e.Token, &at); err != nil {
			return nil, fmt.Errorf("zamcache: index stale scan: %w", err)
		}
		e.WrittenAt = time.Unix(at, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}
