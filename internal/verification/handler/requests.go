package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"classlog/internal/verification/models"
	dErrors "classlog/pkg/domain-errors"
	pstrings "classlog/pkg/platform/strings"
)

// maxPhotos bounds one submission; each photo costs one paid analysis call.
const maxPhotos = 20

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "-" || tag == "" {
			return fld.Name
		}
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		return tag
	})
	return v
})

// GeoPointRequest is a coordinate pair. Pointers keep 0 distinguishable from
// a missing component.
type GeoPointRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

func (g *GeoPointRequest) toModel() *models.GeoPoint {
	if g == nil {
		return nil
	}
	return &models.GeoPoint{Latitude: *g.Latitude, Longitude: *g.Longitude}
}

// VerifyRequest is the HTTP request body for POST /class-logs/{classLogID}/verify.
type VerifyRequest struct {
	PhotoURLs         []string         `json:"photoUrls" validate:"required,min=1,max=20,dive,required,url"`
	PhotoGPS          *GeoPointRequest `json:"photoGps"`
	ExifDateTaken     string           `json:"exifDateTaken" validate:"omitempty,max=64"`
	ReferenceLocation *GeoPointRequest `json:"referenceLocation"`
	DeclaredDate      string           `json:"declaredDate" validate:"required,datetime=2006-01-02"`
	DeclaredTime      string           `json:"declaredTime" validate:"omitempty,max=32"`
	RateLimitKey      string           `json:"rateLimitKey" validate:"omitempty,max=128"`
	OperationClass    string           `json:"operationClass" validate:"omitempty,oneof=verify reverify"`

	declaredDate time.Time
}

// Validate checks field rules, drops repeated photo URLs and parses the
// declared date.
func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.PhotoURLs = pstrings.DedupeAndTrim(r.PhotoURLs)
	r.ExifDateTaken = strings.TrimSpace(r.ExifDateTaken)
	r.DeclaredDate = strings.TrimSpace(r.DeclaredDate)
	r.DeclaredTime = strings.TrimSpace(r.DeclaredTime)
	r.RateLimitKey = strings.TrimSpace(r.RateLimitKey)

	if len(r.PhotoURLs) > maxPhotos {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("photoUrls must contain at most %d photos", maxPhotos))
	}
	if err := validate().Struct(r); err != nil {
		return validationError(err)
	}

	date, err := time.Parse(time.DateOnly, r.DeclaredDate)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "declaredDate must be YYYY-MM-DD")
	}
	r.declaredDate = date
	return nil
}

// ToModel builds the pipeline request. The caller resolves the rate limit key.
func (r *VerifyRequest) ToModel(rateLimitKey string) models.VerificationRequest {
	return models.VerificationRequest{
		PhotoURLs:         r.PhotoURLs,
		PhotoGPS:          r.PhotoGPS.toModel(),
		ExifDateTaken:     r.ExifDateTaken,
		ReferenceLocation: r.ReferenceLocation.toModel(),
		DeclaredDate:      r.declaredDate,
		DeclaredTime:      r.DeclaredTime,
		RateLimitKey:      rateLimitKey,
		OperationClass:    r.OperationClass,
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "VerifyRequest.")
	switch fe.Tag() {
	case "required":
		return dErrors.New(dErrors.CodeValidation, field+" is required")
	case "min", "max":
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
	case "datetime":
		return dErrors.New(dErrors.CodeValidation, field+" must be YYYY-MM-DD")
	case "oneof":
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be a valid %s", field, fe.Tag()))
	}
}
