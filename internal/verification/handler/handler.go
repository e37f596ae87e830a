// Package handler exposes the verification pipeline over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	rlmodels "classlog/internal/ratelimit/models"
	"classlog/internal/verification/models"
	"classlog/internal/verification/service"
	"classlog/pkg/domain"
	dErrors "classlog/pkg/domain-errors"
	"classlog/pkg/platform/httputil"
	"classlog/pkg/requestcontext"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// Service runs verifications and reads stored verdicts.
type Service interface {
	Verify(ctx context.Context, req models.VerificationRequest) (*service.Result, error)
	Verdict(ctx context.Context, classLogID domain.ClassLogID) (*models.Verdict, error)
}

// Handler wires verification endpoints to the pipeline service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/class-logs/{classLogID}/verify", h.HandleVerify)
	r.Get("/class-logs/{classLogID}/verification", h.HandleGetVerification)
}

// HandleGetVerification returns the stored verdict for a class log.
func (h *Handler) HandleGetVerification(w http.ResponseWriter, r *http.Request) {
	classLogID, err := domain.ParseClassLogID(chi.URLParam(r, "classLogID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	verdict, err := h.service.Verdict(r.Context(), classLogID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVerdict(classLogID, verdict))
}

// HandleVerify handles POST /class-logs/{classLogID}/verify requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	classLogID, err := domain.ParseClassLogID(chi.URLParam(r, "classLogID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rateLimitKey, err := throttleKey(ctx, req.RateLimitKey)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	domainReq := req.ToModel(rateLimitKey)
	domainReq.ClassLogID = classLogID

	result, err := h.service.Verify(ctx, domainReq)
	if result != nil {
		writeRateLimitHeaders(w, result.RateLimit)
	}
	if err != nil {
		h.writeVerifyError(ctx, w, classLogID, result, err)
		return
	}

	h.logger.InfoContext(ctx, "class log verified",
		"request_id", requestID,
		"class_log_id", classLogID.String(),
		"final_match", result.Verdict.FinalMatch.String(),
		"date_match", result.Verdict.DateMatch.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromVerdict(classLogID, result.Verdict))
}

func (h *Handler) writeVerifyError(ctx context.Context, w http.ResponseWriter, classLogID domain.ClassLogID, result *service.Result, err error) {
	h.logger.ErrorContext(ctx, "class log verification failed",
		"request_id", requestcontext.RequestID(ctx),
		"class_log_id", classLogID.String(),
		"error", err,
	)

	var limited *models.RateLimitedError
	if errors.As(err, &limited) {
		now := requestcontext.Now(ctx)
		w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(limited.Limit))
		w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(limited.Remaining))
		w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(limited.ResetAt.Unix(), 10))
		w.Header().Set(HeaderRetryAfter, strconv.Itoa(limited.RetryAfter(now)))
	}

	var persistence *models.PersistenceError
	if errors.As(err, &persistence) && result != nil && result.Verdict != nil {
		code := persistence.DomainCode()
		resp := PersistenceFailureResponse{
			Error:   string(code),
			Verdict: FromVerdict(classLogID, result.Verdict),
		}
		if code != dErrors.CodeInternal {
			resp.ErrorDescription = err.Error()
		}
		httputil.WriteJSON(w, httputil.StatusFor(code), resp)
		return
	}

	httputil.WriteError(w, err)
}

// throttleKey keys the throttle on the gateway caller. The body key is only
// honored when no caller is identified, so a caller cannot open fresh windows
// by varying it.
func throttleKey(ctx context.Context, bodyKey string) (string, error) {
	if caller := requestcontext.CallerID(ctx); caller != "" {
		return caller, nil
	}
	if bodyKey != "" {
		return bodyKey, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "rateLimitKey is required when no caller is identified")
}

func writeRateLimitHeaders(w http.ResponseWriter, res *rlmodels.RateLimitResult) {
	if res == nil {
		return
	}
	w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
	w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(res.ResetAt.Unix(), 10))
}
