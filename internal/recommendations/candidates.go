package recommendations

import (
	"context"
	"strings"
	"time"

	"github.com/zfogg/reelrank/internal/models"
	"github.com/zfogg/reelrank/internal/repository"
)

// CandidateFilter narrows the eligible post set. Set fields are conjunctive.
type CandidateFilter struct {
	Category    string
	Tag         string
	ProjectCode string
}

// IsEmpty reports whether no filter field is set.
func (f CandidateFilter) IsEmpty() bool {
	return strings.TrimSpace(f.Category) == "" &&
		strings.TrimSpace(f.Tag) == "" &&
		strings.TrimSpace(f.ProjectCode) == ""
}

// Params flattens the filter for request logging.
func (f CandidateFilter) Params() map[string]string {
	params := make(map[string]string)
	if f.Category != "" {
		params["category"] = f.Category
	}
	if f.Tag != "" {
		params["tag"] = f.Tag
	}
	if f.ProjectCode != "" {
		params["project_code"] = f.ProjectCode
	}
	return params
}

// CandidateSelector picks eligible posts: public, unlocked and matching the filter.
type CandidateSelector struct {
	posts        repository.PostRepository
	defaultLimit int
}

// NewCandidateSelector creates a selector; defaultLimit bounds unfiltered selections.
func NewCandidateSelector(posts repository.PostRepository, defaultLimit int) *CandidateSelector {
	return &CandidateSelector{posts: posts, defaultLimit: defaultLimit}
}

// Select returns the eligible posts matching filter. limit 0 uses the
// selector default and a negative limit returns every match; order is
// unspecified.
func (s *CandidateSelector) Select(ctx context.Context, filter CandidateFilter, limit int) ([]models.Post, error) {
	return s.selectSince(ctx, filter, time.Time{}, nil, limit)
}

// SelectSince is Select restricted to posts created at or after since.
func (s *CandidateSelector) SelectSince(ctx context.Context, filter CandidateFilter, since time.Time, limit int) ([]models.Post, error) {
	return s.selectSince(ctx, filter, since, nil, limit)
}

// SelectExcluding is Select without the given post ids.
func (s *CandidateSelector) SelectExcluding(ctx context.Context, filter CandidateFilter, exclude []uint, limit int) ([]models.Post, error) {
	return s.selectSince(ctx, filter, time.Time{}, exclude, limit)
}

func (s *CandidateSelector) selectSince(ctx context.Context, filter CandidateFilter, since time.Time, exclude []uint, limit int) ([]models.Post, error) {
	switch {
	case limit == 0:
		limit = s.defaultLimit
	case limit < 0:
		limit = 0
	}

	tag := normalizeTag(filter.Tag)
	q := repository.PostQuery{
		Category:     filter.Category,
		ProjectCode:  filter.ProjectCode,
		TagContains:  tag,
		CreatedAfter: since,
		ExcludeIDs:   exclude,
	}
	// With a tag filter the SQL LIKE can over-match, so the limit is applied
	// after the exact membership check.
	if tag == "" {
		q.Limit = limit
	}

	posts, err := s.posts.ListEligible(ctx, q)
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return posts, nil
	}

	matched := posts[:0]
	for _, p := range posts {
		if NormalizeTags(p.Tags).Has(tag) {
			matched = append(matched, p)
			if limit > 0 && len(matched) == limit {
				break
			}
		}
	}
	return matched, nil
}
