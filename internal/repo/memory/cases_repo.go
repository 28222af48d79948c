package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/casehub/internal/domain/legalcase"
)

type CasesRepo struct {
	mu       sync.RWMutex
	items    map[string]legalcase.Case
	counters map[int]int64
	now      func() time.Time
}

func NewCasesRepo() *CasesRepo {
	return &CasesRepo{
		items:    make(map[string]legalcase.Case),
		counters: make(map[int]int64),
		now:      time.Now,
	}
}

func (r *CasesRepo) Create(_ context.Context, req legalcase.CreateCaseRequest) (legalcase.Case, error) {
	now := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[now.Year()]++
	number := legalcase.FormatCaseNumber(r.counters[now.Year()], now.Year())

	c := legalcase.NewFromCreateRequest(req, number, now)
	r.items[c.ID] = c
	return clone(c), nil
}

func (r *CasesRepo) List(_ context.Context, f legalcase.ListFilter) ([]legalcase.Case, int, error) {
	r.mu.RLock()
	matched := make([]legalcase.Case, 0)
	for _, c := range r.items {
		if matches(c, f) {
			matched = append(matched, c)
		}
	}
	r.mu.RUnlock()

	// newest first, id as tiebreaker
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}

	out := make([]legalcase.Case, 0, end-start)
	for _, c := range matched[start:end] {
		out = append(out, clone(c))
	}
	return out, total, nil
}

func matches(c legalcase.Case, f legalcase.ListFilter) bool {
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.CaseType != nil && c.CaseType != *f.CaseType {
		return false
	}
	if f.Search != nil {
		q := strings.ToLower(*f.Search)
		if !strings.Contains(strings.ToLower(c.CaseNumber), q) &&
			!strings.Contains(strings.ToLower(c.Title), q) &&
			!strings.Contains(strings.ToLower(c.Client.Name), q) {
			return false
		}
	}
	return true
}

func (r *CasesRepo) GetByID(_ context.Context, id string) (legalcase.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[id]
	if !ok {
		return legalcase.Case{}, legalcase.ErrNotFound
	}
	return clone(c), nil
}

func (r *CasesRepo) Update(_ context.Context, id string, req legalcase.UpdateCaseRequest) (legalcase.Case, error) {
	if req.Empty() {
		return legalcase.Case{}, legalcase.ErrNoChanges
	}
	return r.mutate(id, func(c *legalcase.Case) error {
		req.Apply(c)
		return nil
	})
}

func (r *CasesRepo) AddHearing(_ context.Context, id string, h legalcase.Hearing) (legalcase.Case, error) {
	return r.mutate(id, func(c *legalcase.Case) error {
		c.Hearings = append(c.Hearings, h)
		return nil
	})
}

func (r *CasesRepo) UpdateHearingStatus(_ context.Context, id, hearingID, status string) (legalcase.Case, error) {
	return r.mutate(id, func(c *legalcase.Case) error {
		for i := range c.Hearings {
			if c.Hearings[i].ID == hearingID {
				c.Hearings[i].Status = status
				return nil
			}
		}
		return legalcase.ErrHearingNotFound
	})
}

func (r *CasesRepo) AddDocument(_ context.Context, id string, d legalcase.Document) (legalcase.Case, error) {
	return r.mutate(id, func(c *legalcase.Case) error {
		c.Documents = append(c.Documents, d)
		return nil
	})
}

func (r *CasesRepo) AddNote(_ context.Context, id string, n legalcase.Note) (legalcase.Case, error) {
	return r.mutate(id, func(c *legalcase.Case) error {
		c.Notes = append(c.Notes, n)
		return nil
	})
}

func (r *CasesRepo) mutate(id string, fn func(*legalcase.Case) error) (legalcase.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[id]
	if !ok {
		return legalcase.Case{}, legalcase.ErrNotFound
	}
	c = clone(c)
	if err := fn(&c); err != nil {
		return legalcase.Case{}, err
	}
	c.UpdatedAt = r.now().UTC()
	r.items[id] = c
	return clone(c), nil
}

// clone copies the slices so callers never alias stored state.
func clone(c legalcase.Case) legalcase.Case {
	c.AssignedTo = append([]string{}, c.AssignedTo...)
	c.Hearings = append([]legalcase.Hearing{}, c.Hearings...)
	c.Documents = append([]legalcase.Document{}, c.Documents...)
	c.Notes = append([]legalcase.Note{}, c.Notes...)
	return c
}
