package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	modelTypeRandomForest = "random_forest"
	modelTypeDecisionTree = "decision_tree"
)

// LoadModel reads an artifact from disk and returns a ready Classifier.
func LoadModel(path string) (Classifier, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var probe struct {
		ModelType string `json:"model_type"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("corrupt model artifact: %w", err)
	}

	switch probe.ModelType {
	case modelTypeRandomForest, modelTypeDecisionTree:
		var forest Forest
		if err := json.Unmarshal(payload, &forest); err != nil {
			return nil, fmt.Errorf("corrupt model artifact: %w", err)
		}
		if err := forest.validate(); err != nil {
			return nil, fmt.Errorf("invalid model artifact: %w", err)
		}
		return &forest, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", probe.ModelType)
	}
}
