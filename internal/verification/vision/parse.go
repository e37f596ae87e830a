package vision

import (
	"encoding/json"
	"strings"

	"classlog/internal/verification/models"
	pstrings "classlog/pkg/platform/strings"
)

const rawExcerptRunes = 200

type analysisPayload struct {
	KidsCount       *float64 `json:"kidsCount"`
	Location        *string  `json:"location"`
	PhotoTimestamp  *string  `json:"photoTimestamp"`
	OrphanageMatch  *string  `json:"orphanageMatch"`
	ConfidenceNotes string   `json:"confidenceNotes"`
}

// parseAnalysis turns the model's output text into a result. It reports
// false, with a degraded uncertain result, when the text is not the
// expected JSON object.
func parseAnalysis(text string) (models.PhotoAnalysisResult, bool) {
	body := extractJSONObject(text)
	if body == "" {
		return degraded(text), false
	}

	var p analysisPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil || p.OrphanageMatch == nil {
		return degraded(text), false
	}

	res := models.PhotoAnalysisResult{
		LocationHint:    pstrings.OptionalString(deref(p.Location)),
		CapturedAtHint:  pstrings.OptionalString(deref(p.PhotoTimestamp)),
		ConfidenceNotes: strings.TrimSpace(p.ConfidenceNotes),
		VisionMatch:     models.TierUncertain,
	}
	if p.KidsCount != nil && *p.KidsCount > 0 {
		res.KidsCount = int(*p.KidsCount)
	}
	if tier, ok := models.ParseMatchTier(strings.ToLower(strings.TrimSpace(*p.OrphanageMatch))); ok {
		res.VisionMatch = tier
	}
	return res, true
}

func degraded(raw string) models.PhotoAnalysisResult {
	return models.PhotoAnalysisResult{
		KidsCount:       0,
		VisionMatch:     models.TierUncertain,
		ConfidenceNotes: "could not parse response, raw excerpt: " + pstrings.Truncate(strings.TrimSpace(raw), rawExcerptRunes),
	}
}

// extractJSONObject strips markdown fences and surrounding prose, returning
// the outermost {...} span or "" when there is none.
func extractJSONObject(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	obj := s[start : end+1]
	if !json.Valid([]byte(obj)) {
		return ""
	}
	return obj
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
