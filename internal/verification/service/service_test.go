package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Throttle,Recorder,Runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"classlog/internal/geofence"
	rlmodels "classlog/internal/ratelimit/models"
	"classlog/internal/verification/metrics"
	"classlog/internal/verification/models"
	"classlog/internal/verification/orchestrator"
	"classlog/internal/verification/service/mocks"
	"classlog/pkg/domain"
	dErrors "classlog/pkg/domain-errors"
	"classlog/pkg/platform/audit"
	"classlog/pkg/platform/sentinel"
	"classlog/pkg/requestcontext"
)

type stubAnalyzer struct {
	results map[string]models.PhotoAnalysisResult
	errs    map[string]error
	calls   atomic.Int32
}

func (a *stubAnalyzer) Analyze(_ context.Context, photoURL, _ string) (models.PhotoAnalysisResult, error) {
	a.calls.Add(1)
	if err, ok := a.errs[photoURL]; ok {
		return models.PhotoAnalysisResult{}, err
	}
	return a.results[photoURL], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Emit(_ context.Context, e audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) actions() []audit.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]audit.Action, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	throttle  *mocks.MockThrottle
	recorder  *mocks.MockRecorder
	analyzer  *stubAnalyzer
	publisher *recordingPublisher
	service   *Service
	ctx       context.Context
	now       time.Time
	id        domain.ClassLogID
	reference models.GeoPoint
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.throttle = mocks.NewMockThrottle(s.ctrl)
	s.recorder = mocks.NewMockRecorder(s.ctrl)
	s.analyzer = &stubAnalyzer{
		results: map[string]models.PhotoAnalysisResult{},
		errs:    map[string]error{},
	}
	s.publisher = &recordingPublisher{}
	s.service = s.newService(orchestrator.New(s.analyzer))
	s.now = time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.id = domain.ClassLogID(uuid.New())
	s.reference = models.GeoPoint{Latitude: 0.3476, Longitude: 32.5825}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) newService(runner Runner) *Service {
	svc, err := New(runner, s.throttle, s.recorder,
		WithAuditPublisher(s.publisher),
		WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) request(urls ...string) models.VerificationRequest {
	return models.VerificationRequest{
		ClassLogID:   s.id,
		PhotoURLs:    urls,
		DeclaredDate: time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		RateLimitKey: "teacher-1",
	}
}

func (s *ServiceSuite) expectAdmitted(class rlmodels.OperationClass) {
	s.throttle.EXPECT().Check(gomock.Any(), "teacher-1", class).Return(&rlmodels.RateLimitResult{
		Allowed:   true,
		Limit:     30,
		Remaining: 29,
		ResetAt:   s.now.Add(time.Hour),
	}, nil)
}

// pointNorth returns a point meters north of p.
func pointNorth(p models.GeoPoint, meters float64) *models.GeoPoint {
	return &models.GeoPoint{
		Latitude:  p.Latitude + meters/geofence.EarthRadiusMeters*180/math.Pi,
		Longitude: p.Longitude,
	}
}

func (s *ServiceSuite) TestNew() {
	_, err := New(nil, s.throttle, s.recorder)
	s.Error(err)
	_, err = New(orchestrator.New(s.analyzer), nil, s.recorder)
	s.Error(err)
	_, err = New(orchestrator.New(s.analyzer), s.throttle, nil)
	s.Error(err)
}

func (s *ServiceSuite) TestGPSAndVisionScenario() {
	hint := "classroom with desks"
	s.analyzer.results["https://cdn.example/a.jpg"] = models.PhotoAnalysisResult{
		KidsCount:       8,
		LocationHint:    &hint,
		VisionMatch:     models.TierLikely,
		ConfidenceNotes: "Children seated at desks.",
	}
	req := s.request("https://cdn.example/a.jpg")
	req.ExifDateTaken = "2025-03-12T09:15:00"
	req.PhotoGPS = pointNorth(s.reference, 120)
	req.ReferenceLocation = &s.reference

	s.expectAdmitted(rlmodels.ClassVerify)
	var persisted models.Verdict
	s.recorder.EXPECT().PersistVerdict(gomock.Any(), s.id, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.ClassLogID, v models.Verdict) error {
			persisted = v
			return nil
		})

	res, err := s.service.Verify(s.ctx, req)
	s.Require().NoError(err)
	s.Require().NotNil(res.Verdict)

	v := res.Verdict
	s.Equal(models.TierHigh, v.FinalMatch)
	s.Equal(models.DateMatchMatch, v.DateMatch)
	s.Contains(v.Rationale, "GPS (120m from orphanage)")
	s.Contains(v.Rationale, "AI vision (likely)")
	s.Require().NotNil(v.GPSDistanceMeters)
	s.Equal(120, *v.GPSDistanceMeters)
	s.Equal(8, v.KidsCount)
	s.Equal("https://cdn.example/a.jpg", v.PrimaryPhotoURL)
	s.Equal(s.now, v.AnalyzedAt)
	s.Equal(*v, persisted)
	s.Equal(29, res.RateLimit.Remaining)
	s.Equal([]audit.Action{audit.ActionVerificationCompleted}, s.publisher.actions())
	s.Equal(s.id.String(), s.publisher.events[0].ClassLogID)
	s.Equal("teacher-1", s.publisher.events[0].Subject)
	s.Equal("high", s.publisher.events[0].Decision)
}

func (s *ServiceSuite) TestVisionOnlyScenario() {
	s.analyzer.results["https://cdn.example/a.jpg"] = models.PhotoAnalysisResult{
		KidsCount:   0,
		VisionMatch: models.TierUnlikely,
	}
	req := s.request("https://cdn.example/a.jpg")
	req.ReferenceLocation = &s.reference

	s.expectAdmitted(rlmodels.ClassVerify)
	s.recorder.EXPECT().PersistVerdict(gomock.Any(), s.id, gomock.Any()).Return(nil)

	res, err := s.service.Verify(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(models.TierUnlikely, res.Verdict.FinalMatch)
	s.Equal(models.DateMatchNoExif, res.Verdict.DateMatch)
	s.Nil(res.Verdict.GPSDistanceMeters)
	s.Equal("Verified by: AI vision (unlikely).", res.Verdict.Rationale)
}

func (s *ServiceSuite) TestPartialFailureKeepsSurvivors() {
	s.analyzer.results["a"] = models.PhotoAnalysisResult{KidsCount: 2, VisionMatch: models.TierLikely}
	s.analyzer.results["b"] = models.PhotoAnalysisResult{KidsCount: 5, VisionMatch: models.TierHigh}
	s.analyzer.errs["c"] = errors.New("upstream 503")
	req := s.request("a", "b", "c")
	req.ReferenceLocation = &s.reference

	s.expectAdmitted(rlmodels.ClassVerify)
	s.recorder.EXPECT().PersistVerdict(gomock.Any(), s.id, gomock.Any()).Return(nil)

	res, err := s.service.Verify(s.ctx, req)
	s.Require().NoError(err)
	s.Equal("b", res.Verdict.PrimaryPhotoURL)
	s.Equal(5, res.Verdict.KidsCount)
	s.Equal(models.TierHigh, res.Verdict.FinalMatch)
	s.Equal(2, res.Verdict.AnalyzedPhotoCount)
	s.Equal(1, res.Verdict.FailedPhotoCount)
	s.Equal([]string{"a", "b"}, res.Verdict.AnalyzedPhotoURLs)
}

func (s *ServiceSuite) TestAllAnalysesFailed() {
	s.analyzer.errs["a"] = errors.New("timeout")
	s.analyzer.errs["b"] = errors.New("bad request")
	req := s.request("a", "b")
	req.ReferenceLocation = &s.reference

	s.expectAdmitted(rlmodels.ClassVerify)

	res, err := s.service.Verify(s.ctx, req)
	var allFailed *models.AllAnalysesFailedError
	s.Require().ErrorAs(err, &allFailed)
	s.Len(allFailed.Failures, 2)
	s.Equal("a", allFailed.Failures[0].PhotoURL)
	s.Nil(res.Verdict)
	s.Equal([]audit.Action{audit.ActionAllAnalysesFailed}, s.publisher.actions())
}

func (s *ServiceSuite) TestRateLimited() {
	resetAt := s.now.Add(20 * time.Minute)
	s.throttle.EXPECT().Check(gomock.Any(), "teacher-1", rlmodels.ClassVerify).Return(&rlmodels.RateLimitResult{
		Allowed:    false,
		Limit:      30,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: 1200,
	}, nil)

	res, err := s.service.Verify(s.ctx, s.request("a"))
	var limited *models.RateLimitedError
	s.Require().ErrorAs(err, &limited)
	s.Equal(resetAt, limited.ResetAt)
	s.Equal(30, limited.Limit)
	s.Nil(res)
	s.Zero(s.analyzer.calls.Load())
}

func (s *ServiceSuite) TestThrottleError() {
	s.throttle.EXPECT().Check(gomock.Any(), "teacher-1", rlmodels.ClassVerify).
		Return(nil, dErrors.New(dErrors.CodeInternal, "failed to check rate limit"))

	_, err := s.service.Verify(s.ctx, s.request("a"))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Zero(s.analyzer.calls.Load())
}

func (s *ServiceSuite) TestPreconditions() {
	s.Run("no photos", func() {
		_, err := s.service.Verify(s.ctx, s.request())
		var pre *models.PreconditionError
		s.Require().ErrorAs(err, &pre)
		s.Equal(models.ReasonNoPhotos, pre.Reason)
	})

	s.Run("analysis unavailable", func() {
		svc := s.newService(orchestrator.New(nil))
		_, err := svc.Verify(s.ctx, s.request("a"))
		var pre *models.PreconditionError
		s.Require().ErrorAs(err, &pre)
		s.Equal(models.ReasonAnalysisUnavailable, pre.Reason)
		s.Contains(s.publisher.actions(), audit.ActionAnalysisUnavailable)
	})
}

func (s *ServiceSuite) TestOperationClass() {
	s.analyzer.results["a"] = models.PhotoAnalysisResult{VisionMatch: models.TierLikely}
	req := s.request("a")
	req.ReferenceLocation = &s.reference
	req.OperationClass = "reverify"

	s.expectAdmitted(rlmodels.ClassReverify)
	s.recorder.EXPECT().PersistVerdict(gomock.Any(), s.id, gomock.Any()).Return(nil)

	_, err := s.service.Verify(s.ctx, req)
	s.NoError(err)
}

func (s *ServiceSuite) TestReferenceLookup() {
	s.analyzer.results["a"] = models.PhotoAnalysisResult{VisionMatch: models.TierUnlikely}

	s.Run("stored coordinates are used", func() {
		req := s.request("a")
		req.PhotoGPS = pointNorth(s.reference, 300)
		s.expectAdmitted(rlmodels.ClassVerify)
		s.recorder.EXPECT().LoadReference(gomock.Any(), s.id).
			Return(&models.Reference{ClassLogID: s.id, Location: &s.reference}, nil)
		s.recorder.EXPECT().PersistVerdict(gomock.Any(), s.id, gomock.Any()).Return(nil)

		res, err := s.service.Verify(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(models.TierLikely, res.Verdict.FinalMatch)
		s.Equal(models.TierUnlikely, res.Verdict.VisionMatch)
	})

	s.Run("orphanage without coordinates falls back to vision", func() {
		req := s.request("a")
		req.PhotoGPS = pointNorth(s.reference, 300)
		s.expectAdmitted(rlmodels.ClassVerify)
		s.recorder.EXPECT().LoadReference(gomock.Any(), s.id).
			Return(&models.Reference{ClassLogID: s.id}, nil)
		s.recorder.EXPECT().PersistVerdict(gomock.Any(), s.id, gomock.Any()).Return(nil)

		res, err := s.service.Verify(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(models.TierUnlikely, res.Verdict.FinalMatch)
		s.Nil(res.Verdict.GPSDistanceMeters)
	})

	s.Run("unknown class log has no reference", func() {
		req := s.request("a")
		req.PhotoGPS = pointNorth(s.reference, 300)
		s.expectAdmitted(rlmodels.ClassVerify)
		s.recorder.EXPECT().LoadReference(gomock.Any(), s.id).Return(nil, sentinel.ErrNotFound)
		s.recorder.EXPECT().PersistVerdict(gomock.Any(), s.id, gomock.Any()).Return(nil)

		res, err := s.service.Verify(s.ctx, req)
		s.Require().NoError(err)
		s.Nil(res.Verdict.GPSDistanceMeters)
	})

	s.Run("storage failure stops the run", func() {
		calls := s.analyzer.calls.Load()
		s.expectAdmitted(rlmodels.ClassVerify)
		s.recorder.EXPECT().LoadReference(gomock.Any(), s.id).Return(nil, errors.New("connection reset"))

		_, err := s.service.Verify(s.ctx, s.request("a"))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Equal(calls, s.analyzer.calls.Load())
	})
}

func (s *ServiceSuite) TestPersistenceFailureReturnsVerdict() {
	s.analyzer.results["a"] = models.PhotoAnalysisResult{KidsCount: 3, VisionMatch: models.TierLikely}

	s.Run("missing class log", func() {
		req := s.request("a")
		req.ReferenceLocation = &s.reference
		s.expectAdmitted(rlmodels.ClassVerify)
		s.recorder.EXPECT().PersistVerdict(gomock.Any(), s.id, gomock.Any()).
			Return(sentinel.ErrNotFound)

		res, err := s.service.Verify(s.ctx, req)
		var perr *models.PersistenceError
		s.Require().ErrorAs(err, &perr)
		s.Equal(dErrors.CodeNotFound, perr.DomainCode())
		s.Require().NotNil(res.Verdict)
		s.Equal(models.TierLikely, res.Verdict.FinalMatch)
	})

	s.Run("database error", func() {
		req := s.request("a")
		req.ReferenceLocation = &s.reference
		s.expectAdmitted(rlmodels.ClassVerify)
		s.recorder.EXPECT().PersistVerdict(gomock.Any(), s.id, gomock.Any()).
			Return(errors.New("connection refused"))

		res, err := s.service.Verify(s.ctx, req)
		var perr *models.PersistenceError
		s.Require().ErrorAs(err, &perr)
		s.Equal(dErrors.CodeInternal, perr.DomainCode())
		s.NotNil(res.Verdict)
		s.Contains(s.publisher.actions(), audit.ActionPersistenceFailed)
	})
}

func (s *ServiceSuite) TestAbandonedRunPersistsNothing() {
	runner := mocks.NewMockRunner(s.ctrl)
	svc := s.newService(runner)
	req := s.request("a")
	req.ReferenceLocation = &s.reference

	runner.EXPECT().Available().Return(true)
	s.expectAdmitted(rlmodels.ClassVerify)
	runner.EXPECT().Run(gomock.Any(), []string{"a"}, "class held on 2025-03-12").
		Return(nil, context.Canceled)

	res, err := svc.Verify(s.ctx, req)
	s.ErrorIs(err, context.Canceled)
	s.Nil(res.Verdict)
}

func (s *ServiceSuite) TestVerdict() {
	s.Run("stored", func() {
		stored := &models.Verdict{FinalMatch: models.TierLikely, DateMatch: models.DateMatchNoExif}
		s.recorder.EXPECT().FindVerdict(gomock.Any(), s.id).Return(stored, nil)

		got, err := s.service.Verdict(s.ctx, s.id)
		s.Require().NoError(err)
		s.Equal(stored, got)
	})

	s.Run("never verified", func() {
		s.recorder.EXPECT().FindVerdict(gomock.Any(), s.id).
			Return(nil, fmt.Errorf("verdict for class log %s: %w", s.id, sentinel.ErrNotFound))

		_, err := s.service.Verdict(s.ctx, s.id)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("storage failure", func() {
		s.recorder.EXPECT().FindVerdict(gomock.Any(), s.id).Return(nil, errors.New("connection reset"))

		_, err := s.service.Verdict(s.ctx, s.id)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
