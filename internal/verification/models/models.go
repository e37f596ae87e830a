// Package models holds the verification pipeline's value types.
package models

import (
	"time"

	"classlog/pkg/domain"
)

// MatchTier is the four-level confidence scale shared by GPS and vision.
type MatchTier string

const (
	TierHigh      MatchTier = "high"
	TierLikely    MatchTier = "likely"
	TierUncertain MatchTier = "uncertain"
	TierUnlikely  MatchTier = "unlikely"
)

// IsValid reports whether t is one of the four tiers.
func (t MatchTier) IsValid() bool {
	switch t {
	case TierHigh, TierLikely, TierUncertain, TierUnlikely:
		return true
	}
	return false
}

func (t MatchTier) String() string { return string(t) }

// ParseMatchTier returns the tier for s, or false when s is not a tier name.
func ParseMatchTier(s string) (MatchTier, bool) {
	t := MatchTier(s)
	return t, t.IsValid()
}

// DateMatch is the outcome of comparing capture time to the declared class time.
type DateMatch string

const (
	DateMatchMatch    DateMatch = "match"
	DateMatchMismatch DateMatch = "mismatch"
	DateMatchNoExif   DateMatch = "no_exif"
)

func (d DateMatch) String() string { return string(d) }

// GeoPoint is a WGS84 coordinate. Absent GPS is a nil *GeoPoint, never (0,0).
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsValid reports whether both components are within WGS84 ranges.
func (p GeoPoint) IsValid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// PhotoAnalysisResult is the vision service's reading of one photo.
type PhotoAnalysisResult struct {
	KidsCount       int       `json:"kidsCount"`
	LocationHint    *string   `json:"locationHint"`
	CapturedAtHint  *string   `json:"capturedAtHint"`
	VisionMatch     MatchTier `json:"visionMatch"`
	ConfidenceNotes string    `json:"confidenceNotes"`
}

// AnalyzedPhoto pairs a photo URL with its successful analysis.
type AnalyzedPhoto struct {
	PhotoURL string
	Result   PhotoAnalysisResult
}

// DateValidation is the temporal reconciliation outcome.
type DateValidation struct {
	DateMatch DateMatch `json:"dateMatch"`
	Notes     string    `json:"notes"`
}

// Verdict is the persisted outcome of one verification run. A re-run
// replaces every field.
type Verdict struct {
	FinalMatch         MatchTier `json:"finalMatch"`
	GPSDistanceMeters  *int      `json:"gpsDistanceMeters"`
	DateMatch          DateMatch `json:"dateMatch"`
	DateNotes          string    `json:"dateNotes"`
	Rationale          string    `json:"rationale"`
	PrimaryPhotoURL    string    `json:"primaryPhotoUrl"`
	KidsCount          int       `json:"kidsCount"`
	VisionMatch        MatchTier `json:"visionMatch"`
	LocationHint       *string   `json:"locationHint"`
	CapturedAtHint     *string   `json:"capturedAtHint"`
	AnalyzedPhotoCount int       `json:"analyzedPhotoCount"`
	FailedPhotoCount   int       `json:"failedPhotoCount"`
	AnalyzedPhotoURLs  []string  `json:"analyzedPhotoUrls"`
	AnalyzedAt         time.Time `json:"analyzedAt"`
}

// VerificationRequest is the pipeline input for one class log.
type VerificationRequest struct {
	ClassLogID        domain.ClassLogID
	PhotoURLs         []string
	PhotoGPS          *GeoPoint
	ExifDateTaken     string
	ReferenceLocation *GeoPoint
	DeclaredDate      time.Time
	DeclaredTime      string
	RateLimitKey      string
	OperationClass    string
}

// ContextLabel is the text handed to the vision service alongside each photo.
func (r VerificationRequest) ContextLabel() string {
	label := "class held on " + r.DeclaredDate.Format(time.DateOnly)
	if r.DeclaredTime != "" {
		label += " at " + r.DeclaredTime
	}
	return label
}

// Reference is the stored context of a class log used when the caller omits
// the orphanage coordinates.
type Reference struct {
	ClassLogID    domain.ClassLogID
	OrphanageID   domain.OrphanageID
	OrphanageName string
	Location      *GeoPoint
}
