// Package memory is an in-process import source and category list, used
// when no spreadsheet is configured and in tests.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"financify/internal/core"
	"financify/internal/importer"
	ports "financify/internal/sheets"
)

type Store struct {
	mu         sync.Mutex
	categories []string
	records    []importer.Record
}

var _ ports.RecordReader = (*Store)(nil)

func New(categories []string) *Store {
	return &Store{categories: dedupe(categories)}
}

// NewFromFiles seeds the category list from base/seed_categories.txt, one
// name per line, falling back to core.DefaultCategories.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = core.DefaultCategories
	}
	return New(cats)
}

// Append queues records for the next ReadRecords.
func (s *Store) Append(records ...importer.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// ReadRecords drains the queued records.
func (s *Store) ReadRecords(_ context.Context) ([]importer.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.records
	s.records = nil
	return out, nil
}

// Categories returns the suggested category names in seed order.
func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.categories...), nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || v == core.TotalBudgetCategory {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
