// Package store persists verification verdicts onto class log records.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"classlog/internal/verification/models"
	"classlog/pkg/domain"
	"classlog/pkg/platform/sentinel"
)

// Schema creates the tables the recorder reads and writes.
//
//go:embed schema.sql
var Schema string

const updateVerdictSQL = `
UPDATE class_logs SET
    verification_final_match        = $2,
    verification_gps_distance_m     = $3,
    verification_vision_match       = $4,
    verification_date_match         = $5,
    verification_date_notes         = $6,
    verification_rationale          = $7,
    verification_primary_photo_url  = $8,
    verification_kids_count         = $9,
    verification_location_hint      = $10,
    verification_captured_at_hint   = $11,
    verification_analyzed_photos    = $12,
    verification_failed_photo_count = $13,
    verified_at                     = $14
WHERE id = $1`

const selectReferenceSQL = `
SELECT o.id, o.name, o.latitude, o.longitude
FROM class_logs cl
JOIN orphanages o ON o.id = cl.orphanage_id
WHERE cl.id = $1`

const selectVerdictSQL = `
SELECT verification_final_match, verification_gps_distance_m, verification_vision_match,
       verification_date_match, verification_date_notes, verification_rationale,
       verification_primary_photo_url, verification_kids_count, verification_location_hint,
       verification_captured_at_hint, verification_analyzed_photos,
       verification_failed_photo_count, verified_at
FROM class_logs
WHERE id = $1`

// PostgresRecorder writes verdicts onto the class_logs table.
type PostgresRecorder struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed recorder.
func NewPostgres(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// PersistVerdict overwrites every verification column of the class log in a
// single statement. A missing class log yields sentinel.ErrNotFound.
func (s *PostgresRecorder) PersistVerdict(ctx context.Context, classLogID domain.ClassLogID, v models.Verdict) error {
	res, err := s.db.ExecContext(ctx, updateVerdictSQL,
		classLogID.String(),
		string(v.FinalMatch),
		nullInt(v.GPSDistanceMeters),
		string(v.VisionMatch),
		string(v.DateMatch),
		v.DateNotes,
		v.Rationale,
		v.PrimaryPhotoURL,
		v.KidsCount,
		nullString(v.LocationHint),
		nullString(v.CapturedAtHint),
		pq.Array(v.AnalyzedPhotoURLs),
		v.FailedPhotoCount,
		v.AnalyzedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("persist verdict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("persist verdict rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("class log %s: %w", classLogID, sentinel.ErrNotFound)
	}
	return nil
}

// LoadReference reads the orphanage context of a class log.
func (s *PostgresRecorder) LoadReference(ctx context.Context, classLogID domain.ClassLogID) (*models.Reference, error) {
	var (
		orphanageID string
		name        string
		lat, lon    sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, selectReferenceSQL, classLogID.String()).
		Scan(&orphanageID, &name, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("class log %s: %w", classLogID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load reference: %w", err)
	}

	oid, err := domain.ParseOrphanageID(orphanageID)
	if err != nil {
		return nil, fmt.Errorf("load reference: %w", err)
	}
	ref := &models.Reference{ClassLogID: classLogID, OrphanageID: oid, OrphanageName: name}
	if lat.Valid && lon.Valid {
		ref.Location = &models.GeoPoint{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	return ref, nil
}

// FindVerdict returns the stored verdict, or sentinel.ErrNotFound when the
// class log does not exist or was never verified.
func (s *PostgresRecorder) FindVerdict(ctx context.Context, classLogID domain.ClassLogID) (*models.Verdict, error) {
	var (
		finalMatch, visionMatch, dateMatch sql.NullString
		dateNotes, rationale, primaryURL   sql.NullString
		locationHint, capturedAtHint       sql.NullString
		distance, kids, failed             sql.NullInt64
		analyzed                           []string
		verifiedAt                         sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, selectVerdictSQL, classLogID.String()).Scan(
		&finalMatch, &distance, &visionMatch,
		&dateMatch, &dateNotes, &rationale,
		&primaryURL, &kids, &locationHint,
		&capturedAtHint, pq.Array(&analyzed),
		&failed, &verifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !verifiedAt.Valid) {
		return nil, fmt.Errorf("verdict for class log %s: %w", classLogID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find verdict: %w", err)
	}

	v := &models.Verdict{
		FinalMatch:         models.MatchTier(finalMatch.String),
		VisionMatch:        models.MatchTier(visionMatch.String),
		DateMatch:          models.DateMatch(dateMatch.String),
		DateNotes:          dateNotes.String,
		Rationale:          rationale.String,
		PrimaryPhotoURL:    primaryURL.String,
		KidsCount:          int(kids.Int64),
		LocationHint:       fromNullString(locationHint),
		CapturedAtHint:     fromNullString(capturedAtHint),
		AnalyzedPhotoURLs:  analyzed,
		AnalyzedPhotoCount: len(analyzed),
		FailedPhotoCount:   int(failed.Int64),
		AnalyzedAt:         verifiedAt.Time.UTC(),
	}
	if distance.Valid {
		d := int(distance.Int64)
		v.GPSDistanceMeters = &d
	}
	return v, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func fromNullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
