package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"classlog/internal/verification/models"
)

type ClientSuite struct {
	suite.Suite
	server  *httptest.Server
	handler http.HandlerFunc
	client  *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handler(w, r)
	}))
	client, err := New(Config{APIKey: "test-key", BaseURL: s.server.URL, Model: "vision-test", Timeout: time.Second})
	s.Require().NoError(err)
	s.client = client
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

// respondWith answers with a Responses API envelope wrapping text.
func respondWith(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{{
				"type": "message",
				"role": "assistant",
				"content": []map[string]any{
					{"type": "output_text", "text": text},
				},
			}},
		})
	}
}

func (s *ClientSuite) TestNewRequiresAPIKey() {
	_, err := New(Config{APIKey: "  "})
	s.ErrorIs(err, ErrNotConfigured)
}

func (s *ClientSuite) TestRequestShape() {
	var captured map[string]any
	var auth string
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		s.Equal("/v1/responses", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&captured)
		respondWith(`{"kidsCount":3,"location":null,"photoTimestamp":null,"orphanageMatch":"likely","confidenceNotes":"ok"}`)(w, r)
	}

	_, err := s.client.Analyze(context.Background(), "https://cdn.example/a.jpg", "class held on 2025-03-12")
	s.Require().NoError(err)

	s.Equal("Bearer test-key", auth)
	s.Equal("vision-test", captured["model"])
	format := captured["text"].(map[string]any)["format"].(map[string]any)
	s.Equal("json_schema", format["type"])
	s.Equal(true, format["strict"])

	input := captured["input"].([]any)
	s.Len(input, 2)
	content := input[1].(map[string]any)["content"].([]any)
	s.Equal("input_text", content[0].(map[string]any)["type"])
	s.Contains(content[0].(map[string]any)["text"], "class held on 2025-03-12")
	s.Equal("input_image", content[1].(map[string]any)["type"])
	s.Equal("https://cdn.example/a.jpg", content[1].(map[string]any)["image_url"])
}

func (s *ClientSuite) TestParsesWellFormedAnswer() {
	s.handler = respondWith(`{"kidsCount":12,"location":"classroom with desks","photoTimestamp":"whiteboard shows 12 March","orphanageMatch":"high","confidenceNotes":"children at desks"}`)

	res, err := s.client.Analyze(context.Background(), "https://cdn.example/a.jpg", "ctx")
	s.Require().NoError(err)
	s.Equal(12, res.KidsCount)
	s.Equal(models.TierHigh, res.VisionMatch)
	s.Require().NotNil(res.LocationHint)
	s.Equal("classroom with desks", *res.LocationHint)
	s.Require().NotNil(res.CapturedAtHint)
	s.Equal("children at desks", res.ConfidenceNotes)
}

func (s *ClientSuite) TestFencedAnswer() {
	s.handler = respondWith("```json\n{\"kidsCount\":4,\"location\":null,\"photoTimestamp\":null,\"orphanageMatch\":\"unlikely\",\"confidenceNotes\":\"outdoor market\"}\n```")

	res, err := s.client.Analyze(context.Background(), "https://cdn.example/a.jpg", "ctx")
	s.Require().NoError(err)
	s.Equal(4, res.KidsCount)
	s.Equal(models.TierUnlikely, res.VisionMatch)
	s.Nil(res.LocationHint)
}

func (s *ClientSuite) TestMalformedAnswerDegrades() {
	s.handler = respondWith("I think there are about five kids in this picture.")

	res, err := s.client.Analyze(context.Background(), "https://cdn.example/a.jpg", "ctx")
	s.Require().NoError(err)
	s.Equal(0, res.KidsCount)
	s.Equal(models.TierUncertain, res.VisionMatch)
	s.Nil(res.LocationHint)
	s.Nil(res.CapturedAtHint)
	s.True(strings.HasPrefix(res.ConfidenceNotes, "could not parse response, raw excerpt: "))
	s.Contains(res.ConfidenceNotes, "five kids")
}

func (s *ClientSuite) TestUnknownTierAndNegativeCount() {
	s.handler = respondWith(`{"kidsCount":-2,"location":"","photoTimestamp":null,"orphanageMatch":"Probably","confidenceNotes":"hm"}`)

	res, err := s.client.Analyze(context.Background(), "https://cdn.example/a.jpg", "ctx")
	s.Require().NoError(err)
	s.Equal(0, res.KidsCount)
	s.Equal(models.TierUncertain, res.VisionMatch)
	s.Nil(res.LocationHint)
}

func (s *ClientSuite) TestRefusalDegrades() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{{
				"type": "message",
				"role": "assistant",
				"content": []map[string]any{
					{"type": "refusal", "refusal": "cannot help"},
				},
			}},
		})
	}

	res, err := s.client.Analyze(context.Background(), "https://cdn.example/a.jpg", "ctx")
	s.Require().NoError(err)
	s.Equal(models.TierUncertain, res.VisionMatch)
	s.Contains(res.ConfidenceNotes, "model refused: cannot help")
}

func (s *ClientSuite) TestStatusErrors() {
	cases := []struct {
		status int
		want   ErrorCategory
	}{
		{http.StatusBadRequest, ErrorBadRequest},
		{http.StatusUnauthorized, ErrorBadRequest},
		{http.StatusTooManyRequests, ErrorUpstreamStatus},
		{http.StatusBadGateway, ErrorUpstreamStatus},
	}
	for _, tc := range cases {
		s.Run(http.StatusText(tc.status), func() {
			calls := 0
			s.handler = func(w http.ResponseWriter, _ *http.Request) {
				calls++
				http.Error(w, `{"error":"nope"}`, tc.status)
			}

			_, err := s.client.Analyze(context.Background(), "https://cdn.example/a.jpg", "ctx")
			s.Require().Error(err)
			s.Equal(tc.want, CategoryOf(err))
			s.Equal(1, calls, "no retries within one invocation")

			var ae *AnalysisError
			s.Require().ErrorAs(err, &ae)
			s.Equal(tc.status, ae.StatusCode)
		})
	}
}

func (s *ClientSuite) TestPerCallTimeout() {
	block := make(chan struct{})
	defer close(block)
	s.handler = func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}
	client, err := New(Config{APIKey: "k", BaseURL: s.server.URL, Timeout: 50 * time.Millisecond})
	s.Require().NoError(err)

	_, err = client.Analyze(context.Background(), "https://cdn.example/a.jpg", "ctx")
	s.Equal(ErrorTimeout, CategoryOf(err))
}

func (s *ClientSuite) TestCallerCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.client.Analyze(ctx, "https://cdn.example/a.jpg", "ctx")
	s.Equal(ErrorCanceled, CategoryOf(err))
}

func (s *ClientSuite) TestUnreachable() {
	client, err := New(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	s.Require().NoError(err)

	_, err = client.Analyze(context.Background(), "https://cdn.example/a.jpg", "ctx")
	s.Equal(ErrorUnreachable, CategoryOf(err))
}
