package handler

import (
	"classlog/internal/verification/models"
	"classlog/pkg/domain"
)

// VerifyResponse is the verdict returned for a class log.
type VerifyResponse struct {
	ClassLogID string `json:"classLogId"`
	models.Verdict
}

// PersistenceFailureResponse carries the computed verdict next to the error
// when it could not be stored.
type PersistenceFailureResponse struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description,omitempty"`
	Verdict          *VerifyResponse `json:"verdict"`
}

func FromVerdict(id domain.ClassLogID, v *models.Verdict) *VerifyResponse {
	out := &VerifyResponse{ClassLogID: id.String(), Verdict: *v}
	if out.AnalyzedPhotoURLs == nil {
		out.AnalyzedPhotoURLs = []string{}
	}
	return out
}
