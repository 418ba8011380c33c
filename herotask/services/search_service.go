package services

import (
	"context"
	"sort"
	"strings"

	"github.com/herotask/task-engine/herotask/database/models"
	"github.com/herotask/task-engine/herotask/database/repositories"
	"github.com/sahilm/fuzzy"
)

// taskSource adapts a task slice to fuzzy.Source for title matching.
type taskSource []*models.Task

func (s taskSource) String(i int) string { return strings.ToLower(s[i].Title) }
func (s taskSource) Len() int            { return len(s) }

// SearchService finds an owner's tasks by fuzzy title match, best matches
// first.
type SearchService struct {
	taskRepo repositories.TaskRepository
}

func NewSearchService(taskRepo repositories.TaskRepository) *SearchService {
	return &SearchService{taskRepo: taskRepo}
}

// SearchTasks matches the query against the owner's task titles. An empty
// query returns everything in the repository's default order.
func (s *SearchService) SearchTasks(ctx context.Context, ownerID, query string) ([]*models.Task, error) {
	ts, err := s.taskRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return ts, nil
	}

	source := taskSource(ts)
	matches := fuzzy.FindFrom(query, source)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	results := make([]*models.Task, 0, len(matches))
	for _, m := range matches {
		results = append(results, ts[m.Index])
	}
	return results, nil
}
