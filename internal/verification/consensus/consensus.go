// Package consensus fuses the geofence and vision signals into one verdict.
// GPS, when present, decides the final tier; vision only explains it.
package consensus

import (
	"fmt"
	"strings"
	"time"

	"classlog/internal/geofence"
	"classlog/internal/verification/models"
)

// Input is everything the aggregator needs. GPS is nil when the photo had no
// device coordinates or the orphanage has no reference location.
type Input struct {
	GPS           *geofence.Result
	Primary       models.AnalyzedPhoto
	Date          models.DateValidation
	AnalyzedURLs  []string
	AnalyzedCount int
	FailedCount   int
	AnalyzedAt    time.Time
}

// Aggregate builds the verdict. The date axis is carried through unchanged
// and never affects FinalMatch.
func Aggregate(in Input) models.Verdict {
	vision := in.Primary.Result
	visionTier := vision.VisionMatch
	if !visionTier.IsValid() {
		visionTier = models.TierUncertain
	}

	v := models.Verdict{
		FinalMatch:         visionTier,
		DateMatch:          in.Date.DateMatch,
		DateNotes:          in.Date.Notes,
		PrimaryPhotoURL:    in.Primary.PhotoURL,
		KidsCount:          vision.KidsCount,
		VisionMatch:        visionTier,
		LocationHint:       vision.LocationHint,
		CapturedAtHint:     vision.CapturedAtHint,
		AnalyzedPhotoCount: in.AnalyzedCount,
		FailedPhotoCount:   in.FailedCount,
		AnalyzedPhotoURLs:  in.AnalyzedURLs,
		AnalyzedAt:         in.AnalyzedAt,
	}

	methods := make([]string, 0, 2)
	if in.GPS != nil {
		distance := in.GPS.DistanceMeters
		v.GPSDistanceMeters = &distance
		v.FinalMatch = in.GPS.Tier
		methods = append(methods, fmt.Sprintf("GPS (%dm from orphanage)", distance))
	}
	methods = append(methods, fmt.Sprintf("AI vision (%s)", visionTier))

	v.Rationale = Rationale(methods, vision.ConfidenceNotes)
	return v
}

// Rationale joins the verification methods used, in order, and appends the
// vision notes.
func Rationale(methods []string, notes string) string {
	var b strings.Builder
	b.WriteString("Verified by: ")
	b.WriteString(strings.Join(methods, " + "))
	b.WriteString(".")
	if n := strings.TrimSpace(notes); n != "" {
		b.WriteString(" ")
		b.WriteString(n)
	}
	return b.String()
}
