package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/tuning"
)

const schema = `
CREATE TABLE IF NOT EXISTS studies (
	name        TEXT PRIMARY KEY,
	study_id    TEXT NOT NULL,
	direction   TEXT NOT NULL,
	best_params TEXT,
	best_value  REAL,
	has_best    INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trials (
	study_name  TEXT NOT NULL,
	number      INTEGER NOT NULL,
	trial_id    TEXT NOT NULL,
	params      TEXT NOT NULL,
	value       REAL,
	state       TEXT NOT NULL,
	error       TEXT,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (study_name, number),
	FOREIGN KEY (study_name) REFERENCES studies(name)
);
`

// SQLiteStore keeps studies in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ tuning.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path and its
// parent directory.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewStorageError("mkdir", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewStorageError("open", path, err)
	}
	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.NewStorageError("migrate", path, err)
		}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the named study. A missing study is not an error.
func (s *SQLiteStore) Load(ctx context.Context, name string) (*tuning.Study, bool, error) {
	var (
		study      tuning.Study
		bestParams sql.NullString
		bestValue  sql.NullFloat64
		hasBest    int
		createdAt  string
		updatedAt  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT study_id, direction, best_params, best_value, has_best, created_at, updated_at
		 FROM studies WHERE name = ?`, name,
	).Scan(&study.ID, &study.Direction, &bestParams, &bestValue, &hasBest, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewStorageError("load study", s.path, err)
	}
	study.Name = name
	study.HasBest = hasBest != 0
	study.BestValue = bestValue.Float64
	if study.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, false, errors.NewStorageError("load study", s.path, err)
	}
	if study.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, false, errors.NewStorageError("load study", s.path, err)
	}
	if bestParams.Valid && bestParams.String != "" {
		if err := json.Unmarshal([]byte(bestParams.String), &study.BestParams); err != nil {
			return nil, false, errors.NewStorageError("decode best params", s.path, err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT number, trial_id, params, value, state, error, started_at, duration_ms
		 FROM trials WHERE study_name = ? ORDER BY number`, name)
	if err != nil {
		return nil, false, errors.NewStorageError("load trials", s.path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t         tuning.TrialRecord
			rawParams string
			value     sql.NullFloat64
			errText   sql.NullString
			started   string
			state     string
		)
		if err := rows.Scan(&t.Number, &t.ID, &rawParams, &value, &state, &errText, &started, &t.DurationMs); err != nil {
			return nil, false, errors.NewStorageError("scan trial", s.path, err)
		}
		if err := json.Unmarshal([]byte(rawParams), &t.Params); err != nil {
			return nil, false, errors.NewStorageError("decode trial params", s.path, err)
		}
		if t.Start, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, false, errors.NewStorageError("scan trial", s.path, err)
		}
		t.Value = value.Float64
		t.State = tuning.TrialState(state)
		t.Error = errText.String
		study.Trials = append(study.Trials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, false, errors.NewStorageError("load trials", s.path, err)
	}
	return &study, true, nil
}

// Save replaces the study's rows in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, study *tuning.Study) error {
	var bestParams []byte
	if study.BestParams != nil {
		var err error
		if bestParams, err = json.Marshal(study.BestParams); err != nil {
			return errors.NewStorageError("encode best params", s.path, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("begin tx", s.path, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trials WHERE study_name = ?`, study.Name); err != nil {
		return errors.NewStorageError("save study", s.path, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM studies WHERE name = ?`, study.Name); err != nil {
		return errors.NewStorageError("save study", s.path, err)
	}
	hasBest := 0
	if study.HasBest {
		hasBest = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO studies (name, study_id, direction, best_params, best_value, has_best, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		study.Name, study.ID, study.Direction, nullString(bestParams), study.BestValue, hasBest,
		study.CreatedAt.UTC().Format(time.RFC3339Nano), study.UpdatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return errors.NewStorageError("save study", s.path, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trials (study_name, number, trial_id, params, value, state, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.NewStorageError("save trials", s.path, err)
	}
	defer stmt.Close()
	for _, t := range study.Trials {
		raw, err := json.Marshal(paramsOrEmpty(t.Params))
		if err != nil {
			return errors.NewStorageError("encode trial params", s.path, err)
		}
		if _, err := stmt.ExecContext(ctx, study.Name, t.Number, t.ID, string(raw), t.Value, string(t.State),
			t.Error, t.Start.UTC().Format(time.RFC3339Nano), t.DurationMs); err != nil {
			return errors.NewStorageError("save trials", s.path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("commit", s.path, err)
	}
	return nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// paramsOrEmpty keeps nil params encodable as an empty object.
func paramsOrEmpty(s params.Set) params.Set {
	if s == nil {
		return params.Set{}
	}
	return s
}
