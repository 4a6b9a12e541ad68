package ml

import "errors"

var (
	ErrModelNotLoaded  = errors.New("model not loaded")
	ErrNoProbabilities = errors.New("model does not support probability output")
)

// Metadata describes the loaded artifact. Classes is the ordered label list;
// probability vectors align with it positionally.
type Metadata struct {
	ModelType             string `json:"model_type"`
	NFeatures             int    `json:"n_features"`
	Classes               []int  `json:"classes"`
	HasPredictProba       bool   `json:"has_predict_proba"`
	HasFeatureImportances bool   `json:"has_feature_importances"`
}

type Classifier interface {
	Predict(features []float64) (int, error)
	Metadata() Metadata
}

// ProbabilityClassifier is implemented by models whose leaves carry class
// distributions.
type ProbabilityClassifier interface {
	Classifier
	PredictProba(features []float64) ([]float64, error)
}

// BatchClassifier is implemented by models that can score many rows in one
// call.
type BatchClassifier interface {
	Classifier
	PredictBatch(rows [][]float64) ([]int, error)
}
