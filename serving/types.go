package serving

import "time"

// SingleRequest is a validated single-vector prediction request.
type SingleRequest struct {
	Features []float64
}

// BatchRequest is a validated batch request; all rows have the same length.
type BatchRequest struct {
	Rows [][]float64
}

type Result struct {
	Prediction    int
	Probabilities []float64
}

type SingleResponse struct {
	Prediction    int       `json:"prediction"`
	Probabilities []float64 `json:"probabilities,omitempty"`
	Success       bool      `json:"success"`
}

type BatchResponse struct {
	Predictions   []int       `json:"predictions"`
	Probabilities [][]float64 `json:"probabilities,omitempty"`
	Count         int         `json:"count"`
	Success       bool        `json:"success"`
}

type ModelInfoResponse struct {
	ModelType             string `json:"model_type"`
	HasPredictProba       bool   `json:"has_predict_proba"`
	HasFeatureImportances bool   `json:"has_feature_importances"`
	NFeatures             int    `json:"n_features"`
	Classes               []int  `json:"classes"`
	Success               bool   `json:"success"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// AuditRecord is one model invocation, persisted to the audit store and
// broadcast to monitoring clients.
type AuditRecord struct {
	Features   []float64 `json:"features"`
	Prediction int       `json:"prediction"`
	Confidence float64   `json:"confidence"`
	LatencyMS  float64   `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditStore persists prediction records. Implementations must tolerate
// concurrent calls.
type AuditStore interface {
	SavePrediction(rec AuditRecord) error
}

// EventPublisher fans prediction events out to live observers. Publishing
// must never block the request path.
type EventPublisher interface {
	PublishPrediction(rec AuditRecord)
}
