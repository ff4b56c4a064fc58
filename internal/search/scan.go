package search

import (
	"context"
	"strings"
)

// RecordSource lists every searchable project.
type RecordSource func(ctx context.Context) ([]ProjectRecord, error)

// Scan is a substring matcher over a RecordSource. It backs search when the
// API runs on the in-memory store.
type Scan struct {
	source RecordSource
}

func NewScan(source RecordSource) *Scan {
	return &Scan{source: source}
}

func (s *Scan) Healthy() bool { return true }

func (s *Scan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return nil, 0, nil
	}
	records, err := s.source(ctx)
	if err != nil {
		return nil, 0, err
	}

	matched := make([]Result, 0)
	for _, r := range records {
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		haystack := strings.ToLower(r.Title + " " + r.Description + " " + strings.Join(r.Tags, " "))
		if !containsAll(haystack, terms) {
			continue
		}
		matched = append(matched, Result{
			ID:      r.ID,
			Title:   r.Title,
			Snippet: r.Description,
			Status:  r.Status,
			OwnerID: r.OwnerID,
			Tags:    r.Tags,
		})
	}

	total := len(matched)
	start := min(q.offset(), total)
	end := min(start+q.limit(), total)
	return matched[start:end], total, nil
}

func containsAll(haystack string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
