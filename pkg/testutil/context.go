package testutil

import (
	"net/http"

	"classlog/pkg/requestcontext"
)

// WithCallerID adds an authenticated caller to the request context, as the
// caller middleware would.
func WithCallerID(req *http.Request, callerID string) *http.Request {
	return req.WithContext(requestcontext.WithCallerID(req.Context(), callerID))
}
