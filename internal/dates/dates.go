// Package dates loads and filters the calendar dates a run works with.
package dates

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/mitchellh/go-homedir"
)

// Set is an insertion-ordered set of calendar dates.
type Set struct {
	order []civil.Date
	index map[civil.Date]struct{}
}

// NewSet builds a Set from ds, dropping duplicates but keeping first-seen order.
func NewSet(ds ...civil.Date) Set {
	var s Set
	for _, d := range ds {
		s.Add(d)
	}
	return s
}

// Add inserts d. It returns false if d was already present.
func (s *Set) Add(d civil.Date) bool {
	if s.index == nil {
		s.index = make(map[civil.Date]struct{})
	}
	if _, ok := s.index[d]; ok {
		return false
	}
	s.index[d] = struct{}{}
	s.order = append(s.order, d)
	return true
}

// Contains reports whether d is in the set. The zero Set contains nothing.
func (s Set) Contains(d civil.Date) bool {
	_, ok := s.index[d]
	return ok
}

func (s Set) Len() int { return len(s.order) }

// Dates returns a copy of the set's dates in insertion order.
func (s Set) Dates() []civil.Date {
	out := make([]civil.Date, len(s.order))
	copy(out, s.order)
	return out
}

// ParseList reads one YYYY-MM-DD date per line. Blank lines and lines starting
// with '#' are ignored.
func ParseList(r io.Reader) (Set, error) {
	var s Set
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, err := civil.ParseDate(line)
		if err != nil {
			return Set{}, fmt.Errorf("line %d: invalid date %q (want YYYY-MM-DD): %w", lineNo, line, err)
		}
		s.Add(d)
	}
	if err := scanner.Err(); err != nil {
		return Set{}, fmt.Errorf("failed to read date list: %w", err)
	}
	return s, nil
}

// LoadFile parses the date list at path. A missing file (or an empty path) is an
// empty set, not an error.
func LoadFile(path string) (Set, error) {
	if strings.TrimSpace(path) == "" {
		return Set{}, nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Set{}, fmt.Errorf("failed to expand path %q: %w", path, err)
	}

	f, err := os.Open(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Set{}, nil
		}
		return Set{}, fmt.Errorf("failed to open date list %q: %w", expanded, err)
	}
	defer f.Close()

	s, err := ParseList(f)
	if err != nil {
		return Set{}, fmt.Errorf("%s: %w", expanded, err)
	}
	return s, nil
}

// IsExcluded reports whether d has been opted out.
func IsExcluded(d civil.Date, exclusions Set) bool {
	return exclusions.Contains(d)
}

// Today returns the calendar date of now in now's location.
func Today(now time.Time) civil.Date {
	return civil.DateOf(now)
}
