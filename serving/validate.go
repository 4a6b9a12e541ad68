package serving

import (
	"encoding/json"
	"fmt"
)

// ValidateSingle checks a raw /predict body against the single-request
// shape. Pure function of the body; no model state is consulted here.
func ValidateSingle(body []byte) (*SingleRequest, *Error) {
	var payload struct {
		Features []any `json:"features"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, NewValidationError("invalid JSON body", map[string]string{
			"body": err.Error(),
		})
	}
	features, verr := numericVector(payload.Features, "features")
	if verr != nil {
		return nil, verr
	}
	return &SingleRequest{Features: features}, nil
}

// ValidateBatch checks a raw /predict/batch body. Validation is fail-fast:
// the first offending row is named and no partial batch is accepted.
func ValidateBatch(body []byte) (*BatchRequest, *Error) {
	var payload struct {
		Data []any `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, NewValidationError("invalid JSON body", map[string]string{
			"body": err.Error(),
		})
	}
	if payload.Data == nil {
		return nil, NewValidationError("data field is required", map[string]string{
			"data": "required",
		})
	}
	if len(payload.Data) == 0 {
		return nil, NewValidationError("data must be a non-empty array", map[string]string{
			"data": "empty",
		})
	}

	rows := make([][]float64, 0, len(payload.Data))
	for i, raw := range payload.Data {
		field := fmt.Sprintf("data[%d]", i)
		elems, ok := raw.([]any)
		if !ok {
			return nil, NewValidationError("each row must be an array of numbers", map[string]string{
				field: "not an array",
			})
		}
		row, verr := numericVector(elems, field)
		if verr != nil {
			return nil, verr
		}
		if len(rows) > 0 && len(row) != len(rows[0]) {
			return nil, NewValidationError("rows must all have the same length", map[string]string{
				field: fmt.Sprintf("expected %d values, got %d", len(rows[0]), len(row)),
			})
		}
		rows = append(rows, row)
	}
	return &BatchRequest{Rows: rows}, nil
}

// numericVector converts decoded JSON elements into a feature vector,
// naming the first non-numeric index. A nil slice means the field was
// missing from the body.
func numericVector(elems []any, field string) ([]float64, *Error) {
	if elems == nil {
		return nil, NewValidationError(field+" field is required", map[string]string{
			field: "required",
		})
	}
	if len(elems) == 0 {
		return nil, NewValidationError(field+" must be a non-empty array", map[string]string{
			field: "empty",
		})
	}
	vector := make([]float64, len(elems))
	for i, elem := range elems {
		value, ok := elem.(float64)
		if !ok {
			return nil, NewValidationError("all values must be numeric", map[string]string{
				fmt.Sprintf("%s[%d]", field, i): "element is not numeric",
			})
		}
		vector[i] = value
	}
	return vector, nil
}
