package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/tercen/ggrs-plot-operator-sub000/frame"
	"github.com/tercen/ggrs-plot-operator-sub000/tablesource"
)

// MemSource is an in-memory tablesource.Source over fixed frames. It counts
// fetches per table so tests can assert the at-most-once-fetch guarantee,
// and can be armed to fail the next fetch.
type MemSource struct {
	mu      sync.Mutex
	tables  map[string]*frame.Frame
	fetches map[string]int
	fail    error
}

// NewMemSource creates an empty source.
func NewMemSource() *MemSource {
	return &MemSource{
		tables:  make(map[string]*frame.Frame),
		fetches: make(map[string]int),
	}
}

// Add registers a table. The frame is used as-is; tests must not mutate it
// afterwards.
func (s *MemSource) Add(tableID string, f *frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[tableID] = f
}

// FailNext arms the source to fail its next fetch with err.
func (s *MemSource) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Fetches returns how many times a table's columns were fetched.
func (s *MemSource) Fetches(tableID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[tableID]
}

// Schema implements tablesource.Source.
func (s *MemSource) Schema(_ context.Context, tableID string) (tablesource.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.tables[tableID]
	if !ok {
		return tablesource.Schema{}, fmt.Errorf("testutil: no table %q", tableID)
	}
	sch := tablesource.Schema{RowCount: int64(f.NumRows())}
	for i := 0; i < f.NumCols(); i++ {
		c := f.ColumnAt(i)
		sch.Columns = append(sch.Columns, tablesource.ColumnSchema{Name: c.Name, Type: c.Type})
	}
	return sch, nil
}

// FetchColumns implements tablesource.Source. Windows past the table's end
// are clamped.
func (s *MemSource) FetchColumns(_ context.Context, tableID string, columns []string, rng frame.Range) (*frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		err := s.fail
		s.fail = nil
		return nil, err
	}

	f, ok := s.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("testutil: no table %q", tableID)
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	s.fetches[tableID]++

	end := rng.End
	if end > int64(f.NumRows()) {
		end = int64(f.NumRows())
	}
	if rng.Start >= end {
		return nil, fmt.Errorf("testutil: window %s past table %q end %d", rng, tableID, f.NumRows())
	}
	window, err := f.Slice(int(rng.Start), int(end))
	if err != nil {
		return nil, err
	}

	out := frame.New(window.NumRows())
	for _, name := range columns {
		c, err := window.Column(name)
		if err != nil {
			return nil, fmt.Errorf("testutil: table %q: %w", tableID, err)
		}
		if err := out.Add(*c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

var _ tablesource.Source = (*MemSource)(nil)
