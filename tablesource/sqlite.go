package tablesource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

// SQLite reads tables from a SQLite database. Each database table is
// addressed by its name; rowid order defines row order.
type SQLite struct {
	db   *sql.DB
	owns bool

	mu      sync.Mutex
	schemas map[string]Schema
}

// OpenSQLite opens a database file as a source. Close releases it.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tablesource: open sqlite %s: %w", path, err)
	}
	// An in-memory database exists per connection; pin the pool to one so
	// every query sees the same data.
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	return &SQLite{db: db, owns: true, schemas: make(map[string]Schema)}, nil
}

// NewSQLite wraps an existing database handle. The caller keeps ownership;
// Close will not close it.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, schemas: make(map[string]Schema)}
}

// Close releases the database if the source owns it.
func (s *SQLite) Close() error {
	if !s.owns {
		return nil
	}
	return s.db.Close()
}

// Schema returns the table's schema, memoized after the first call.
func (s *SQLite) Schema(ctx context.Context, tableID string) (Schema, error) {
	s.mu.Lock()
	if sch, ok := s.schemas[tableID]; ok {
		s.mu.Unlock()
		return sch, nil
	}
	s.mu.Unlock()

	var count int64
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(tableID))
	if err := s.db.QueryRowContext(ctx, q).Scan(&count); err != nil {
		return Schema{}, fmt.Errorf("tablesource: count table %q: %w", tableID, err)
	}

	q = fmt.Sprintf(`SELECT * FROM %s LIMIT 0`, quoteIdent(tableID))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return Schema{}, fmt.Errorf("tablesource: describe table %q: %w", tableID, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return Schema{}, fmt.Errorf("tablesource: describe table %q: %w", tableID, err)
	}
	sch := Schema{RowCount: count, Columns: make([]ColumnSchema, 0, len(types))}
	for _, ct := range types {
		t, err := affinityType(ct.DatabaseTypeName())
		if err != nil {
			return Schema{}, fmt.Errorf("tablesource: table %q column %q: %w", tableID, ct.Name(), err)
		}
		sch.Columns = append(sch.Columns, ColumnSchema{Name: ct.Name(), Type: t})
	}
	if err := rows.Err(); err != nil {
		return Schema{}, fmt.Errorf("tablesource: describe table %q: %w", tableID, err)
	}

	s.mu.Lock()
	s.schemas[tableID] = sch
	s.mu.Unlock()
	return sch, nil
}

// FetchColumns reads one window of the named columns in rowid order.
func (s *SQLite) FetchColumns(ctx context.Context, tableID string, columns []string, rng frame.Range) (*frame.Frame, error) {
	if err := rng.Validate(); err != nil {
		return nil, fmt.Errorf("tablesource: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("tablesource: no columns requested from table %q", tableID)
	}

	sch, err := s.Schema(ctx, tableID)
	if err != nil {
		return nil, err
	}
	colTypes := make([]frame.Type, len(columns))
	for i, name := range columns {
		c, ok := sch.Column(name)
		if !ok {
			return nil, fmt.Errorf("tablesource: table %q has no column %q", tableID, name)
		}
		colTypes[i] = c.Type
	}

	quoted := make([]string, len(columns))
	for i, name := range columns {
		quoted[i] = quoteIdent(name)
	}
	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY rowid LIMIT ? OFFSET ?`,
		strings.Join(quoted, ", "), quoteIdent(tableID))

	rows, err := s.db.QueryContext(ctx, q, rng.Len(), rng.Start)
	if err != nil {
		return nil, fmt.Errorf("tablesource: fetch table %q rows %s: %w", tableID, rng, err)
	}
	defer rows.Close()

	window := int(rng.Len())
	i32s := make([][]int32, len(columns))
	f64s := make([][]float64, len(columns))
	strs := make([][]string, len(columns))
	invalid := make([][]int, len(columns))

	holders := make([]any, len(columns))
	nullI32 := make([]sql.NullInt32, len(columns))
	nullF64 := make([]sql.NullFloat64, len(columns))
	nullStr := make([]sql.NullString, len(columns))
	for i, t := range colTypes {
		switch t {
		case frame.TypeInt32:
			i32s[i] = make([]int32, 0, window)
			holders[i] = &nullI32[i]
		case frame.TypeFloat64:
			f64s[i] = make([]float64, 0, window)
			holders[i] = &nullF64[i]
		case frame.TypeString:
			strs[i] = make([]string, 0, window)
			holders[i] = &nullStr[i]
		default:
			return nil, fmt.Errorf("tablesource: table %q column %q has unfetchable type %s", tableID, columns[i], colTypes[i])
		}
	}

	n := 0
	for rows.Next() {
		if err := rows.Scan(holders...); err != nil {
			return nil, fmt.Errorf("tablesource: scan table %q row %d: %w", tableID, rng.Start+int64(n), err)
		}
		for i, t := range colTypes {
			switch t {
			case frame.TypeInt32:
				i32s[i] = append(i32s[i], nullI32[i].Int32)
				if !nullI32[i].Valid {
					invalid[i] = append(invalid[i], n)
				}
			case frame.TypeFloat64:
				f64s[i] = append(f64s[i], nullF64[i].Float64)
				if !nullF64[i].Valid {
					invalid[i] = append(invalid[i], n)
				}
			case frame.TypeString:
				strs[i] = append(strs[i], nullStr[i].String)
				if !nullStr[i].Valid {
					invalid[i] = append(invalid[i], n)
				}
			}
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tablesource: fetch table %q rows %s: %w", tableID, rng, err)
	}

	f := frame.New(n)
	for i, name := range columns {
		var c frame.Column
		switch colTypes[i] {
		case frame.TypeInt32:
			c = frame.NewInt32(name, i32s[i])
		case frame.TypeFloat64:
			c = frame.NewFloat64(name, f64s[i])
		case frame.TypeString:
			c = frame.NewString(name, strs[i])
		}
		for _, row := range invalid[i] {
			c.SetInvalid(row)
		}
		if err := f.Add(c); err != nil {
			return nil, fmt.Errorf("tablesource: table %q: %w", tableID, err)
		}
	}
	return f, nil
}

// affinityType maps a declared SQLite column type to a frame type, following
// SQLite's affinity rules.
func affinityType(decl string) (frame.Type, error) {
	d := strings.ToUpper(decl)
	switch {
	case strings.Contains(d, "INT"):
		return frame.TypeInt32, nil
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return frame.TypeString, nil
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"), d == "NUMERIC":
		return frame.TypeFloat64, nil
	default:
		return frame.TypeInvalid, fmt.Errorf("unsupported declared type %q", decl)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
