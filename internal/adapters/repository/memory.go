package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/leaderboard/internal/domain/model"
)

// MemoryStore is a process-local Store. Records keep insertion order so
// List pages are stable, and ids are random UUIDs.
type MemoryStore struct {
	mu     sync.RWMutex
	order  []string                // ids in creation order
	byID   map[string]model.Record // id -> record
	bySlug map[string]string       // slug -> id
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]model.Record),
		bySlug: make(map[string]string),
	}
}

// GetBySlug implements Store.
func (s *MemoryStore) GetBySlug(ctx context.Context, slug string) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySlug[slug]
	if !ok {
		return model.Record{}, fmt.Errorf("slug %q: %w", slug, ErrNotFound)
	}
	return s.byID[id], nil
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, title, slug, content string) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, err
	}
	if strings.TrimSpace(slug) == "" {
		return model.Record{}, fmt.Errorf("slug is required: %w", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.bySlug[slug]; taken {
		return model.Record{}, fmt.Errorf("slug %q: %w", slug, ErrConflict)
	}
	rec := model.Record{
		ID:      uuid.NewString(),
		Slug:    slug,
		Title:   title,
		Content: content,
	}
	s.byID[rec.ID] = rec
	s.bySlug[slug] = rec.ID
	s.order = append(s.order, rec.ID)
	return rec, nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, id, content string) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return model.Record{}, fmt.Errorf("id %q: %w", id, ErrNotFound)
	}
	rec.Content = content
	s.byID[id] = rec
	return rec, nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, pageSize, page int) (model.Page, error) {
	if err := ctx.Err(); err != nil {
		return model.Page{}, err
	}
	if pageSize < 1 || page < 1 {
		return model.Page{}, fmt.Errorf("page %d size %d: %w", page, pageSize, ErrInvalidArgument)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := len(s.order)
	start := (page - 1) * pageSize
	if start >= found {
		return model.Page{Records: []model.Record{}, Found: found}, nil
	}
	end := min(start+pageSize, found)

	records := make([]model.Record, 0, end-start)
	for _, id := range s.order[start:end] {
		records = append(records, s.byID[id])
	}
	return model.Page{Records: records, Found: found}, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
