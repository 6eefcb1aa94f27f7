package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"swarmlog/internal/batch"
)

// BatchSummary is one stored batch
type BatchSummary struct {
	ID       string
	Root     string
	Mode     string
	Columns  []string
	Started  time.Time
	Finished time.Time
	Runs     int
	Failed   int
}

// StoredResult is one stored run of a batch
type StoredResult struct {
	Path     string
	Status   string
	Error    string
	Duration time.Duration
	Values   map[string]float64
}

// SQLiteStore keeps batch results in a SQLite database
type SQLiteStore struct {
	open func() (*sql.DB, error)

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteStore creates a store backed by the database file at dbPath. The
// file and schema are created on first use.
func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{
		open: func() (*sql.DB, error) {
			return sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		},
	}
}

// NewSQLiteStoreWithDB creates a store on an open database handle
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		open: func() (*sql.DB, error) { return db, nil },
	}
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := s.open()
		if err != nil {
			s.dbErr = fmt.Errorf("opening database: %w", err)
			return
		}

		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.db = db
	})

	return s.db, s.dbErr
}

// SaveBatch stores a batch and all of its run results in one transaction
func (s *SQLiteStore) SaveBatch(ctx context.Context, b *batch.Batch) (err error) {
	db, err := s.getDB()
	if err != nil {
		return fmt.Errorf("getting connection: %w", err)
	}

	columns, err := json.Marshal(b.Columns)
	if err != nil {
		return fmt.Errorf("marshaling columns: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	_, err = tx.ExecContext(ctx, insertBatchSQL,
		b.ID.String(),
		b.Root,
		b.Mode.String(),
		string(columns),
		b.Started.UTC(),
		b.Finished.UTC(),
		len(b.Results),
		b.Failed(),
	)
	if err != nil {
		return fmt.Errorf("inserting batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertResultSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, res := range b.Results {
		var errText sql.NullString
		if res.Err != nil {
			errText = sql.NullString{String: res.Err.Error(), Valid: true}
		}

		var values sql.NullString
		if res.Values != nil {
			p, mErr := marshalValues(res)
			if mErr != nil {
				return fmt.Errorf("marshaling values of %s: %w", res.Path, mErr)
			}
			values = sql.NullString{String: string(p), Valid: true}
		}

		if _, err = stmt.ExecContext(ctx, b.ID.String(), res.Path, res.Status.String(), errText, res.Duration.Milliseconds(), values); err != nil {
			return fmt.Errorf("inserting result of %s: %w", res.Path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Batches returns every stored batch, oldest first
func (s *SQLiteStore) Batches(ctx context.Context) (batches []BatchSummary, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectBatchesSQL)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var b BatchSummary
		var columns string
		if err = rows.Scan(&b.ID, &b.Root, &b.Mode, &columns, &b.Started, &b.Finished, &b.Runs, &b.Failed); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		if err = json.Unmarshal([]byte(columns), &b.Columns); err != nil {
			return nil, fmt.Errorf("decoding columns of batch %s: %w", b.ID, err)
		}
		batches = append(batches, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batches: %w", err)
	}
	return batches, nil
}

// Results returns the stored runs of a batch in insertion order
func (s *SQLiteStore) Results(ctx context.Context, batchID string) (results []StoredResult, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectResultsSQL, batchID)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r StoredResult
		var errText, values sql.NullString
		var durationMs int64
		if err = rows.Scan(&r.Path, &r.Status, &errText, &durationMs, &values); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.Error = errText.String
		r.Duration = time.Duration(durationMs) * time.Millisecond

		if values.Valid {
			if r.Values, err = unmarshalValues([]byte(values.String)); err != nil {
				return nil, fmt.Errorf("decoding values of %s: %w", r.Path, err)
			}
		}
		results = append(results, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return results, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
			s.db = nil
		}
	})
	return s.closeErr
}

// marshalValues encodes run values as a JSON object. Non-finite values are
// kept as their strconv text since JSON has no number for them.
func marshalValues(res batch.RunResult) ([]byte, error) {
	obj := make(map[string]any, len(res.Values))
	for _, v := range res.Values {
		if math.IsInf(v.Value, 0) || math.IsNaN(v.Value) {
			obj[v.Name] = strconv.FormatFloat(v.Value, 'f', -1, 64)
			continue
		}
		obj[v.Name] = v.Value
	}
	return json.Marshal(obj)
}

func unmarshalValues(p []byte) (map[string]float64, error) {
	var obj map[string]any
	if err := json.Unmarshal(p, &obj); err != nil {
		return nil, err
	}

	values := make(map[string]float64, len(obj))
	for name, raw := range obj {
		switch v := raw.(type) {
		case float64:
			values[name] = v
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("value %s: %w", name, err)
			}
			values[name] = f
		default:
			return nil, fmt.Errorf("value %s: unexpected %T", name, raw)
		}
	}
	return values, nil
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(tx *sql.Tx, err *error) {
	if rErr := tx.Rollback(); rErr != nil && !errors.Is(rErr, sql.ErrTxDone) && *err == nil {
		*err = rErr
	}
}
