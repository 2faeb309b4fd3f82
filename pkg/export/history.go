package export

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/match"
)

// Run is one recorded search.
type Run struct {
	ID        int64
	Query     string
	Dataset   string
	Results   int
	CreatedAt int64
}

// History stores searches and their ranked results in a SQLite file.
type History struct {
	db *sql.DB
}

// OpenHistory opens (or creates) the SQLite database at path and ensures the
// runs and results tables exist.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS runs (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		query       TEXT NOT NULL,
		dataset     TEXT NOT NULL DEFAULT '',
		results     INTEGER NOT NULL,
		created_at  INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS results (
		run_id         INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		rank           INTEGER NOT NULL,
		record_id      TEXT NOT NULL,
		type           TEXT NOT NULL,
		kind           TEXT NOT NULL,
		score          REAL NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		code_reference TEXT NOT NULL DEFAULT '',
		jurisdiction   TEXT NOT NULL DEFAULT '',
		attributes     TEXT NOT NULL,
		PRIMARY KEY (run_id, rank)
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history tables: %w", err)
	}

	return &History{db: db}, nil
}

// Close closes the SQLite connection.
func (h *History) Close() error {
	return h.db.Close()
}

// Save records a search and its views in one transaction and returns the
// run id.
func (h *History) Save(query, dataset string, views []match.View) (int64, error) {
	tx, err := h.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO runs (query, dataset, results, created_at) VALUES (?, ?, ?, ?)`,
		query, dataset, len(views), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}

	const q = `INSERT INTO results
		(run_id, rank, record_id, type, kind, score, description, code_reference, jurisdiction, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for i, v := range views {
		attrs, err := json.Marshal(v.MatchedAttributes)
		if err != nil {
			return 0, fmt.Errorf("save result %s: %w", v.ID, err)
		}
		if _, err := tx.Exec(q, id, i+1, v.ID, string(v.Type), string(v.Kind), v.Score,
			v.Description, v.CodeReference, v.Jurisdiction, string(attrs)); err != nil {
			return 0, fmt.Errorf("save result %s: %w", v.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}
	return id, nil
}

// Runs returns recorded searches, newest first.
func (h *History) Runs() ([]Run, error) {
	rows, err := h.db.Query(`SELECT id, query, dataset, results, created_at FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Query, &r.Dataset, &r.Results, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Results returns the views saved for a run, in rank order.
func (h *History) Results(runID int64) ([]match.View, error) {
	rows, err := h.db.Query(`SELECT record_id, type, kind, score, description, code_reference, jurisdiction, attributes
		FROM results WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results for run %d: %w", runID, err)
	}
	defer rows.Close()

	views := []match.View{}
	for rows.Next() {
		var (
			v         match.View
			typ, kind string
			attrs     string
		)
		if err := rows.Scan(&v.ID, &typ, &kind, &v.Score, &v.Description, &v.CodeReference, &v.Jurisdiction, &attrs); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		v.Type, v.Kind = catalog.ComponentType(typ), catalog.RecordKind(kind)
		if err := json.Unmarshal([]byte(attrs), &v.MatchedAttributes); err != nil {
			return nil, fmt.Errorf("decode attributes of %s: %w", v.ID, err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}
