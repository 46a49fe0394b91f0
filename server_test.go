package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgmeasure/pkg/imagesrc"
	"imgmeasure/pkg/metrics"
	"imgmeasure/pkg/predict"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// stubEvaluator treats links as recognized text; "missing" fails to fetch.
type stubEvaluator struct{}

func (stubEvaluator) Evaluate(_ context.Context, link, entity string) predict.Outcome {
	if link == "missing" {
		return predict.Outcome{Prediction: predict.Extract("", entity), Err: imagesrc.ErrFetch}
	}
	return predict.Outcome{Prediction: predict.Extract(link, entity), Text: link}
}

func setupTestServer(t *testing.T, secret string) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	r := gin.New()
	setupRoutes(r, &server{predictor: stubEvaluator{}, metrics: m, jwtSecret: []byte(secret)})
	return r, m
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func jsonBody(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func TestPredictEndpoint(t *testing.T) {
	r, _ := setupTestServer(t, "")

	rec := performRequest(r, http.MethodPost, "/predict", jsonBody(map[string]string{"image_link": "Net wt 500g", "entity_name": "item_weight"}), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "500.0 gram", decode(t, rec)["prediction"])

	rec = performRequest(r, http.MethodPost, "/predict", jsonBody(map[string]string{"image_link": "missing", "entity_name": "width"}), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "", body["prediction"])
	assert.Contains(t, body["error"], "fetch")

	rec = performRequest(r, http.MethodPost, "/predict", jsonBody(map[string]string{"entity_name": "width"}), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractEndpoint(t *testing.T) {
	r, _ := setupTestServer(t, "")

	rec := performRequest(r, http.MethodPost, "/extract", jsonBody(map[string]string{"text": "230 V ~ 50 Hz", "entity_name": "voltage"}), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "230.0 volt", decode(t, rec)["prediction"])

	rec = performRequest(r, http.MethodPost, "/extract", jsonBody(map[string]string{"text": "230 V", "entity_name": "shade"}), "")
	assert.Equal(t, predict.InvalidEntityPrediction, decode(t, rec)["prediction"])

	rec = performRequest(r, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `imgmeasure_rows_total{outcome="invalid_entity"} 1`)
}

func TestEntitiesAndHealth(t *testing.T) {
	r, _ := setupTestServer(t, "secret")

	rec := performRequest(r, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = performRequest(r, http.MethodGet, "/entities", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	entities := decode(t, rec)["entities"].(map[string]any)
	assert.Len(t, entities, 8)
	assert.Equal(t, []any{"kilowatt", "watt"}, entities["wattage"])
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	r, _ := setupTestServer(t, "secret")
	body := map[string]string{"text": "3 ft", "entity_name": "height"}

	rec := performRequest(r, http.MethodPost, "/extract", jsonBody(body), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = performRequest(r, http.MethodPost, "/extract", jsonBody(body), "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wrong, err := issueToken([]byte("other"), "batch", time.Hour)
	require.NoError(t, err)
	rec = performRequest(r, http.MethodPost, "/extract", jsonBody(body), wrong)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := issueToken([]byte("secret"), "batch", -time.Minute)
	require.NoError(t, err)
	rec = performRequest(r, http.MethodPost, "/extract", jsonBody(body), expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := issueToken([]byte("secret"), "batch", time.Hour)
	require.NoError(t, err)
	rec = performRequest(r, http.MethodPost, "/extract", jsonBody(body), tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3.0 foot", decode(t, rec)["prediction"])
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, "127.0.0.1:0", http.NotFoundHandler(), zapNop()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestParseTokenSubject(t *testing.T) {
	tok, err := issueToken([]byte("k"), "nightly", time.Minute)
	require.NoError(t, err)
	sub, err := parseToken([]byte("k"), tok)
	require.NoError(t, err)
	assert.Equal(t, "nightly", sub)

	_, err = parseToken([]byte("k"), strings.Replace(tok, ".", "x.", 1))
	assert.Error(t, err)
}
