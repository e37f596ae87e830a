package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"classlog/internal/verification/models"
	"classlog/pkg/domain"
	"classlog/pkg/platform/sentinel"
)

type MemoryRecorderSuite struct {
	suite.Suite
	store *MemoryRecorder
	ctx   context.Context
}

func TestMemoryRecorderSuite(t *testing.T) {
	suite.Run(t, new(MemoryRecorderSuite))
}

func (s *MemoryRecorderSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func (s *MemoryRecorderSuite) TestPersistOverwrites() {
	id := domain.ClassLogID(uuid.New())
	first := models.Verdict{FinalMatch: models.TierLikely, Rationale: "first", AnalyzedAt: time.Now()}
	second := models.Verdict{FinalMatch: models.TierHigh, Rationale: "second", AnalyzedAt: time.Now()}

	s.Require().NoError(s.store.PersistVerdict(s.ctx, id, first))
	s.Require().NoError(s.store.PersistVerdict(s.ctx, id, second))

	got, err := s.store.FindVerdict(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(second, *got)
}

func (s *MemoryRecorderSuite) TestPersistCopiesPhotoList() {
	id := domain.ClassLogID(uuid.New())
	urls := []string{"a", "b"}
	s.Require().NoError(s.store.PersistVerdict(s.ctx, id, models.Verdict{AnalyzedPhotoURLs: urls}))
	urls[0] = "mutated"

	got, _ := s.store.FindVerdict(s.ctx, id)
	s.Equal([]string{"a", "b"}, got.AnalyzedPhotoURLs)
}

func (s *MemoryRecorderSuite) TestReferences() {
	id := domain.ClassLogID(uuid.New())

	_, err := s.store.LoadReference(s.ctx, id)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.store.AddReference(models.Reference{
		ClassLogID:    id,
		OrphanageName: "Hope House",
		Location:      &models.GeoPoint{Latitude: 0.35, Longitude: 32.58},
	})
	ref, err := s.store.LoadReference(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("Hope House", ref.OrphanageName)
}

func (s *MemoryRecorderSuite) TestFindMissing() {
	_, err := s.store.FindVerdict(s.ctx, domain.ClassLogID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
