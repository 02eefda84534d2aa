package zeroshot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	val string
	err error
}

func (f fakeGetter) GetParameter(context.Context, string) (string, error) {
	return f.val, f.err
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(fakeGetter{val: `{"token":"hf-test"}`}, "/grocer/zeroshot-token",
		WithBaseURL(srv.URL+"/models/"),
		WithModel("facebook/bart-large-mnli"),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func TestScore_PipelineShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/facebook/bart-large-mnli", r.URL.Path)
		require.Equal(t, "Bearer hf-test", r.Header.Get("Authorization"))

		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "How do I make pasta?", req.Inputs)
		require.Equal(t, []string{"Recipe type"}, req.Parameters.CandidateLabels)
		require.Equal(t, "This message is asking for a recipe for {}", req.Parameters.HypothesisTemplate)
		require.True(t, req.Parameters.MultiLabel)

		_, _ = w.Write([]byte(`{"sequence":"How do I make pasta?","labels":["Recipe type"],"scores":[0.93]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv).Score(context.Background(), "How do I make pasta?", []string{"Recipe type"}, "This message is asking for a recipe for {}")
	require.NoError(t, err)
	require.Equal(t, []float64{0.93}, got)
}

func TestScore_ListShapeMapsBackToLabelOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.False(t, req.Parameters.MultiLabel)
		_, _ = w.Write([]byte(`[{"label":"no","score":0.2},{"label":"yes","score":0.8}]`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv).Score(context.Background(), "I am vegetarian", []string{"yes", "no"}, "")
	require.NoError(t, err)
	require.Equal(t, []float64{0.8, 0.2}, got)
}

func TestScore_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "model loading", status: 503, body: `{"error":"Model is currently loading"}`, wantErr: "503"},
		{name: "bad json", status: 200, body: `nope`, wantErr: "decode response"},
		{name: "missing label", status: 200, body: `{"labels":["other"],"scores":[0.5]}`, wantErr: "no score"},
		{name: "length mismatch", status: 200, body: `{"labels":["a"],"scores":[]}`, wantErr: "differ in length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv).Score(context.Background(), "text", []string{"a"}, "{}")
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestScore_StatusErrorExposesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Score(context.Background(), "text", []string{"a"}, "{}")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestScore_RequiresLabelsAndKey(t *testing.T) {
	c, err := NewClient(fakeGetter{err: errors.New("ssm down")}, "/grocer/zeroshot-token")
	require.NoError(t, err)

	_, err = c.Score(context.Background(), "text", nil, "{}")
	require.ErrorContains(t, err, "candidate label")

	_, err = c.Score(context.Background(), "text", []string{"a"}, "{}")
	require.ErrorContains(t, err, "ssm down")
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "/grocer/zeroshot-token")
	require.Error(t, err)
	_, err = NewClient(fakeGetter{}, " ")
	require.Error(t, err)
}
