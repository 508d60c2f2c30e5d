// Package store persists simulation results in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/measure"
	"github.com/fumin/qcirc/state"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableStates     = "states"
	tableAmplitudes = "amplitudes"
	tableCounts     = "counts"

	kindVector  = "vector"
	kindDensity = "density"
	kindMPS     = "mps"

	timeout = 3 * time.Second
)

// DB is a SQLite database of states and sample counts, each saved under a name.
type DB struct {
	Path string
	db   *sql.DB
}

// Open opens the database at path, creating it if it does not exist.
func Open(path string) (*DB, error) {
	db, err := newDB(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &DB{Path: path, db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// SaveState saves s under name, replacing any state saved under the same name.
// Matrix product states are saved as their dense amplitudes together with their bond dimension.
func (d *DB) SaveState(ctx context.Context, name string, s state.State) error {
	var kind string
	var chi int
	switch v := s.(type) {
	case *state.Vector:
		kind = kindVector
	case *state.DensityMatrix:
		kind = kindDensity
	case *state.MPS:
		kind = kindMPS
		chi = v.Chains()[0].Chi
	default:
		panic(fmt.Sprintf("%T", s))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tx.Rollback()

	if err := deleteName(ctx, tx, tableAmplitudes, name); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (name, kind, qubits, batch, chi) VALUES (?, ?, ?, ?, ?)`, tableStates)
	if _, err := tx.ExecContext(ctx, sqlStr, name, kind, s.NumQubits(), s.BatchSize(), chi); err != nil {
		return errors.Wrap(err, "")
	}

	sqlStr = fmt.Sprintf(`INSERT INTO %s (name, b, i, re, im) VALUES (?, ?, ?, ?, ?)`, tableAmplitudes)
	stmt, err := tx.PrepareContext(ctx, sqlStr)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer stmt.Close()
	for b, amps := range state.Dense(s) {
		for i, v := range amps {
			if v == 0 {
				continue
			}
			if _, err := stmt.ExecContext(ctx, name, b, i, real(v), imag(v)); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%s %d %d", name, b, i))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// LoadState returns the state saved under name.
func (d *DB) LoadState(ctx context.Context, name string) (state.State, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var kind string
	var n, batch, chi int
	sqlStr := fmt.Sprintf(`SELECT kind, qubits, batch, chi FROM %s WHERE name=?`, tableStates)
	err := d.db.QueryRowContext(ctx, sqlStr, name).Scan(&kind, &n, &batch, &chi)
	switch {
	case err == sql.ErrNoRows:
		return nil, errors.Errorf("no state %q", name)
	case err != nil:
		return nil, errors.Wrap(err, "")
	}

	size := 1 << n
	if kind == kindDensity {
		size *= size
	}
	amps := make([][]complex64, batch)
	for b := range amps {
		amps[b] = make([]complex64, size)
	}
	sqlStr = fmt.Sprintf(`SELECT b, i, re, im FROM %s WHERE name=? ORDER BY b, i`, tableAmplitudes)
	rows, err := d.db.QueryContext(ctx, sqlStr, name)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()
	for rows.Next() {
		var b, i int
		var re, im float32
		if err := rows.Scan(&b, &i, &re, &im); err != nil {
			return nil, errors.Wrap(err, "")
		}
		if b < 0 || b >= batch || i < 0 || i >= size {
			return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%s amplitude %d of batch %d", name, i, b)
		}
		amps[b][i] = complex(re, im)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	switch kind {
	case kindDensity:
		dim := 1 << n
		rhos := make([][][]complex64, 0, batch)
		for _, a := range amps {
			rho := make([][]complex64, 0, dim)
			for r := range dim {
				rho = append(rho, a[r*dim:(r+1)*dim])
			}
			rhos = append(rhos, rho)
		}
		s, err := state.NewDensity(rhos, n)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return s, nil
	case kindVector, kindMPS:
		v, err := state.FromAmplitudes(amps, n)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		if kind == kindVector {
			return v, nil
		}
		s, err := state.MPSFromVector(v, chi)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return s, nil
	default:
		return nil, errors.Errorf("unknown kind %q of %s", kind, name)
	}
}

// SaveCounts saves the counts of each batch item under name, replacing any counts saved under the same name.
func (d *DB) SaveCounts(ctx context.Context, name string, counts []measure.Counts) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tx.Rollback()

	if err := deleteName(ctx, tx, tableCounts, name); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr := fmt.Sprintf(`INSERT INTO %s (name, b, label, n) VALUES (?, ?, ?, ?)`, tableCounts)
	for b, c := range counts {
		for label, n := range c {
			if _, err := tx.ExecContext(ctx, sqlStr, name, b, label, n); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%s %d %s", name, b, label))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// LoadCounts returns the counts saved under name, or nil if there are none.
func (d *DB) LoadCounts(ctx context.Context, name string) ([]measure.Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT b, label, n FROM %s WHERE name=? ORDER BY b, label`, tableCounts)
	rows, err := d.db.QueryContext(ctx, sqlStr, name)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	var counts []measure.Counts
	for rows.Next() {
		var b, n int
		var label string
		if err := rows.Scan(&b, &label, &n); err != nil {
			return nil, errors.Wrap(err, "")
		}
		for len(counts) <= b {
			counts = append(counts, nil)
		}
		if counts[b] == nil {
			counts[b] = make(measure.Counts)
		}
		counts[b][label] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return counts, nil
}

// Names returns the names of the saved states.
func (d *DB) Names(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, tableStates)
	rows, err := d.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return names, nil
}

func deleteName(ctx context.Context, tx *sql.Tx, table, name string) error {
	sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE name=?`, table)
	if _, err := tx.ExecContext(ctx, sqlStr, name); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, kind TEXT, qubits INTEGER, batch INTEGER, chi INTEGER) STRICT`, tableStates),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT, b INTEGER, i INTEGER, re REAL, im REAL, PRIMARY KEY (name, b, i)) STRICT`, tableAmplitudes),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT, b INTEGER, label TEXT, n INTEGER, PRIMARY KEY (name, b, label)) STRICT`, tableCounts),
	}
	for _, sqlStr := range stmts {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}
