package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classlog/internal/verification/models"
)

func executeCmd(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	err := Execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRootHelp(t *testing.T) {
	stdout, _, err := executeCmd("--help")
	require.NoError(t, err)
	for _, name := range []string{"geofence", "reconcile", "verify", "schema", "throttle"} {
		assert.Contains(t, stdout, name)
	}
}

func TestGeofence(t *testing.T) {
	t.Run("same point is high", func(t *testing.T) {
		stdout, _, err := executeCmd("geofence", "--device", "0.3476,32.5825", "--reference", "0.3476,32.5825")
		require.NoError(t, err)

		var out geofenceOutput
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, 0, out.DistanceMeters)
		assert.Equal(t, models.TierHigh, out.Tier)
	})

	t.Run("far point is unlikely", func(t *testing.T) {
		stdout, _, err := executeCmd("geofence", "--device", "-1.2921,36.8219", "--reference", "0.3476,32.5825")
		require.NoError(t, err)

		var out geofenceOutput
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, models.TierUnlikely, out.Tier)
	})

	t.Run("malformed point", func(t *testing.T) {
		_, _, err := executeCmd("geofence", "--device", "0.3476", "--reference", "0.3476,32.5825")
		assert.ErrorContains(t, err, "--device")
	})

	t.Run("out of range", func(t *testing.T) {
		_, _, err := executeCmd("geofence", "--device", "95,10", "--reference", "0.3476,32.5825")
		assert.ErrorContains(t, err, "out of range")
	})
}

func TestReconcile(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want models.DateMatch
	}{
		{"same day", []string{"--exif", "2025-03-12T09:15:00", "--date", "2025-03-12"}, models.DateMatchMatch},
		{"two days later", []string{"--exif", "2025-03-14T09:15:00", "--date", "2025-03-12"}, models.DateMatchMismatch},
		{"no exif", []string{"--date", "2025-03-12"}, models.DateMatchNoExif},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stdout, _, err := executeCmd(append([]string{"reconcile"}, tc.args...)...)
			require.NoError(t, err)

			var out models.DateValidation
			require.NoError(t, json.Unmarshal([]byte(stdout), &out))
			assert.Equal(t, tc.want, out.DateMatch)
		})
	}

	t.Run("bad date", func(t *testing.T) {
		_, _, err := executeCmd("reconcile", "--date", "12/03/2025")
		assert.Error(t, err)
	})
}

func TestSchema(t *testing.T) {
	stdout, _, err := executeCmd("schema")
	require.NoError(t, err)
	assert.Contains(t, stdout, "CREATE TABLE IF NOT EXISTS class_logs")
}

func TestThrottleReset(t *testing.T) {
	t.Run("requires a caller", func(t *testing.T) {
		_, _, err := executeCmd("throttle", "reset")
		assert.ErrorContains(t, err, "caller")
	})

	t.Run("rejects unknown class", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_CONFIG_FILE", "")
		_, _, err := executeCmd("throttle", "reset", "--caller", "ip:203.0.113.9", "--class", "export")
		assert.ErrorContains(t, err, `unknown operation class "export"`)
	})

	t.Run("needs the shared store", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_CONFIG_FILE", "")
		t.Setenv("REDIS_URL", "")
		_, _, err := executeCmd("throttle", "reset", "--caller", "ip:203.0.113.9")
		assert.ErrorIs(t, err, errNoSharedStore)
	})
}

func writeRequest(t *testing.T, body map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func visionServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{{
				"type": "message",
				"role": "assistant",
				"content": []map[string]any{
					{"type": "output_text", "text": answer},
				},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerify(t *testing.T) {
	body := map[string]any{
		"photoUrls":         []string{"https://cdn.example/a.jpg"},
		"photoGps":          map[string]any{"latitude": 0.3476, "longitude": 32.5825},
		"referenceLocation": map[string]any{"latitude": 0.3476, "longitude": 32.5825},
		"exifDateTaken":     "2025-03-12T09:15:00",
		"declaredDate":      "2025-03-12",
	}

	t.Run("runs the pipeline", func(t *testing.T) {
		srv := visionServer(t, `{"kidsCount":4,"location":"classroom","photoTimestamp":null,"orphanageMatch":"likely","confidenceNotes":"Kids at desks."}`)
		t.Setenv("VISION_API_KEY", "test-key")
		t.Setenv("VISION_BASE_URL", srv.URL)

		stdout, _, err := executeCmd("verify", "--file", writeRequest(t, body),
			"--class-log-id", "7b0f4a52-3c1e-4c41-9d0e-1f6a2b3c4d5e")
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, "7b0f4a52-3c1e-4c41-9d0e-1f6a2b3c4d5e", out["classLogId"])
		assert.Equal(t, "high", out["finalMatch"])
		assert.Equal(t, "likely", out["visionMatch"])
		assert.Equal(t, "match", out["dateMatch"])
		assert.EqualValues(t, 4, out["kidsCount"])
	})

	t.Run("vision not configured", func(t *testing.T) {
		t.Setenv("VISION_API_KEY", "")

		_, _, err := executeCmd("verify", "--file", writeRequest(t, body))
		var pre *models.PreconditionError
		require.ErrorAs(t, err, &pre)
		assert.Equal(t, models.ReasonAnalysisUnavailable, pre.Reason)
	})

	t.Run("invalid request", func(t *testing.T) {
		_, _, err := executeCmd("verify", "--file", writeRequest(t, map[string]any{"declaredDate": "2025-03-12"}))
		assert.ErrorContains(t, err, "photoUrls")
	})
}
