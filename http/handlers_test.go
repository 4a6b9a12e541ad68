package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"inferd/db"
	"inferd/ml"
	"inferd/serving"
)

func newTestMux(t *testing.T, loadModel bool, store *db.Store) *http.ServeMux {
	t.Helper()
	forest := &ml.Forest{
		ModelType: "random_forest",
		NFeatures: 4,
		Classes:   []int{0, 1},
		Trees: []ml.Tree{
			{Nodes: []ml.TreeNode{
				{FeatureIdx: 0, Threshold: 3.0, LeftChild: 1, RightChild: 2},
				{IsLeaf: true, Distribution: []float64{0.9, 0.1}},
				{IsLeaf: true, Distribution: []float64{0.2, 0.8}},
			}},
		},
	}
	path := filepath.Join(t.TempDir(), "forest.json")
	if err := forest.Save(path); err != nil {
		t.Fatal(err)
	}
	wrapper := ml.NewWrapper(path, nil)
	if loadModel {
		if err := wrapper.Load(); err != nil {
			t.Fatal(err)
		}
	}

	cfg := serving.ServiceConfig{CacheSize: 16}
	if store != nil {
		cfg.Store = store
	}
	svc := serving.NewService(wrapper, cfg)

	mux := http.NewServeMux()
	NewHandler(svc, store, nil, nil).Register(mux)
	return mux
}

func doRequest(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return payload
}

func TestHandleHealth(t *testing.T) {
	mux := newTestMux(t, true, nil)

	w := doRequest(mux, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	if payload["status"] != "healthy" || payload["model_loaded"] != true {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestHandleHealthDegraded(t *testing.T) {
	mux := newTestMux(t, false, nil)

	w := doRequest(mux, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	if payload["status"] != "degraded" || payload["model_loaded"] != false {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestHandlePredict(t *testing.T) {
	mux := newTestMux(t, true, nil)

	w := doRequest(mux, http.MethodPost, "/predict", `{"features":[5.0,2.0,4.0,0.5]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	payload := decodeBody(t, w)
	if payload["prediction"].(float64) != 1 {
		t.Fatalf("unexpected prediction: %v", payload["prediction"])
	}
	if payload["success"] != true {
		t.Fatalf("expected success=true: %v", payload)
	}
	probs, ok := payload["probabilities"].([]any)
	if !ok || len(probs) != 2 {
		t.Fatalf("unexpected probabilities: %v", payload["probabilities"])
	}
}

func TestHandlePredictEmptyFeatures(t *testing.T) {
	mux := newTestMux(t, true, nil)

	w := doRequest(mux, http.MethodPost, "/predict", `{"features":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	if payload["success"] != false {
		t.Fatalf("expected success=false: %v", payload)
	}
	if payload["error"] == "" {
		t.Fatalf("expected error message: %v", payload)
	}
}

func TestHandlePredictNonNumericNamesIndex(t *testing.T) {
	mux := newTestMux(t, true, nil)

	w := doRequest(mux, http.MethodPost, "/predict", `{"features":["a",1,2,3]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	details, ok := payload["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details: %v", payload)
	}
	if _, ok := details["features[0]"]; !ok {
		t.Fatalf("expected features[0] in details: %v", details)
	}
}

func TestHandlePredictModelUnavailable(t *testing.T) {
	mux := newTestMux(t, false, nil)

	w := doRequest(mux, http.MethodPost, "/predict", `{"features":[1,2,3,4]}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	if payload["success"] != false {
		t.Fatalf("expected success=false: %v", payload)
	}

	w = doRequest(mux, http.MethodPost, "/predict/batch", `{"data":[[1,2,3,4]]}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestHandlePredictBatch(t *testing.T) {
	mux := newTestMux(t, true, nil)

	w := doRequest(mux, http.MethodPost, "/predict/batch",
		`{"data":[[5.0,2.0,4.0,0.5],[1.0,2.0,1.0,0.5]]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	payload := decodeBody(t, w)
	if payload["count"].(float64) != 2 {
		t.Fatalf("unexpected count: %v", payload["count"])
	}
	preds := payload["predictions"].([]any)
	if preds[0].(float64) != 1 || preds[1].(float64) != 0 {
		t.Fatalf("unexpected predictions: %v", preds)
	}
	probs := payload["probabilities"].([]any)
	if len(probs) != 2 {
		t.Fatalf("unexpected probabilities: %v", probs)
	}
}

func TestHandlePredictBatchMixedRows(t *testing.T) {
	mux := newTestMux(t, true, nil)

	w := doRequest(mux, http.MethodPost, "/predict/batch", `{"data":[[1,2,3,4],[1,2]]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	details := payload["details"].(map[string]any)
	if _, ok := details["data[1]"]; !ok {
		t.Fatalf("expected data[1] in details: %v", details)
	}
}

func TestHandleModelInfo(t *testing.T) {
	mux := newTestMux(t, true, nil)

	w := doRequest(mux, http.MethodGet, "/model/info", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	if payload["model_type"] != "random_forest" {
		t.Fatalf("unexpected model_type: %v", payload["model_type"])
	}
	if payload["n_features"].(float64) != 4 {
		t.Fatalf("unexpected n_features: %v", payload["n_features"])
	}
	if payload["has_predict_proba"] != true || payload["success"] != true {
		t.Fatalf("unexpected payload: %v", payload)
	}
	classes := payload["classes"].([]any)
	if len(classes) != 2 {
		t.Fatalf("unexpected classes: %v", classes)
	}
}

func TestHandleNotFound(t *testing.T) {
	mux := newTestMux(t, true, nil)

	w := doRequest(mux, http.MethodGet, "/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	if payload["success"] != false {
		t.Fatalf("expected success=false: %v", payload)
	}
}

func TestHandleMethodNotAllowed(t *testing.T) {
	mux := newTestMux(t, true, nil)

	w := doRequest(mux, http.MethodGet, "/predict", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	if payload["success"] != false {
		t.Fatalf("expected success=false: %v", payload)
	}

	w = doRequest(mux, http.MethodPost, "/health", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestHandleRecentPredictions(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	mux := newTestMux(t, true, store)

	w := doRequest(mux, http.MethodPost, "/predict", `{"features":[5.0,2.0,4.0,0.5]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doRequest(mux, http.MethodGet, "/predictions?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	if payload["count"].(float64) != 1 {
		t.Fatalf("unexpected count: %v", payload)
	}
}

func TestHandleRecentPredictionsWithoutStore(t *testing.T) {
	mux := newTestMux(t, true, nil)

	w := doRequest(mux, http.MethodGet, "/predictions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	if payload["count"].(float64) != 0 || payload["success"] != true {
		t.Fatalf("unexpected payload: %v", payload)
	}
}
