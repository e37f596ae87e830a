package health

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classlog/pkg/testutil"
)

func router(checks ...Check) http.Handler {
	r := chi.NewRouter()
	New(time.Now(), checks...).Register(r)
	return r
}

func TestLive(t *testing.T) {
	rr := testutil.DoRequest(router(), testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "ok", true)
}

func TestReady(t *testing.T) {
	ok := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("connection refused") }

	t.Run("all dependencies up", func(t *testing.T) {
		rr := testutil.DoRequest(router(Check{Name: "postgres", Ping: ok}, Check{Name: "redis"}),
			testutil.NewRequest(t, http.MethodGet, "/readyz"))
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[ReadyResponse](t, rr)
		assert.Equal(t, "ok", resp.Status)
		require.Len(t, resp.Checks, 2)
		assert.Equal(t, "skipped", resp.Checks[1].Status)
	})

	t.Run("failing dependency", func(t *testing.T) {
		rr := testutil.DoRequest(router(Check{Name: "postgres", Ping: failing}),
			testutil.NewRequest(t, http.MethodGet, "/readyz"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)

		resp := testutil.UnmarshalResponse[ReadyResponse](t, rr)
		assert.Equal(t, "fail", resp.Status)
		assert.Equal(t, "connection refused", resp.Checks[0].Error)
	})
}
