package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"classlog/internal/verification/models"
	"classlog/pkg/domain"
	"classlog/pkg/platform/sentinel"
)

// MemoryRecorder keeps verdicts and references in process memory. Verdicts
// for unknown class logs are accepted, so it can back ad hoc runs.
type MemoryRecorder struct {
	mu         sync.RWMutex
	verdicts   map[domain.ClassLogID]models.Verdict
	references map[domain.ClassLogID]models.Reference
}

// NewMemory creates an empty recorder.
func NewMemory() *MemoryRecorder {
	return &MemoryRecorder{
		verdicts:   make(map[domain.ClassLogID]models.Verdict),
		references: make(map[domain.ClassLogID]models.Reference),
	}
}

// AddReference registers the orphanage context of a class log.
func (s *MemoryRecorder) AddReference(ref models.Reference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.references[ref.ClassLogID] = ref
}

func (s *MemoryRecorder) PersistVerdict(_ context.Context, classLogID domain.ClassLogID, v models.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.AnalyzedPhotoURLs = slices.Clone(v.AnalyzedPhotoURLs)
	s.verdicts[classLogID] = v
	return nil
}

func (s *MemoryRecorder) LoadReference(_ context.Context, classLogID domain.ClassLogID) (*models.Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.references[classLogID]
	if !ok {
		return nil, fmt.Errorf("class log %s: %w", classLogID, sentinel.ErrNotFound)
	}
	return &ref, nil
}

func (s *MemoryRecorder) FindVerdict(_ context.Context, classLogID domain.ClassLogID) (*models.Verdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verdicts[classLogID]
	if !ok {
		return nil, fmt.Errorf("verdict for class log %s: %w", classLogID, sentinel.ErrNotFound)
	}
	return &v, nil
}
