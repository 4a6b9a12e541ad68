package serving

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"inferd/ml"
)

// Service orchestrates validation, model dispatch and response shaping for
// single and batch predictions. It is safe for concurrent use: the wrapper
// guards model state, the LRU cache locks internally, and the service itself
// holds no per-request state.
type Service struct {
	model  *ml.Wrapper
	cache  *lru.Cache[uint64, Result]
	store  AuditStore
	events EventPublisher
	logger *zap.Logger
}

type ServiceConfig struct {
	// CacheSize bounds the prediction result cache; zero disables caching.
	// Caching is sound because the model is deterministic and immutable for
	// the lifetime of a load; a reload purges the cache.
	CacheSize int
	Store     AuditStore
	Events    EventPublisher
	Logger    *zap.Logger
}

func NewService(model *ml.Wrapper, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		model:  model,
		store:  cfg.Store,
		events: cfg.Events,
		logger: logger,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[uint64, Result](cfg.CacheSize)
		if err == nil {
			s.cache = cache
		}
	}
	model.OnReload(s.PurgeCache)
	return s
}

// PurgeCache drops all cached results. Called after every model reload.
func (s *Service) PurgeCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *Service) Health() HealthResponse {
	// Computed fresh on every call, never cached.
	loaded := s.model.Loaded()
	status := "healthy"
	if !loaded {
		status = "degraded"
	}
	return HealthResponse{Status: status, ModelLoaded: loaded}
}

func (s *Service) ModelInfo() (*ModelInfoResponse, *Error) {
	meta, ok := s.model.Metadata()
	if !ok {
		return nil, NewModelUnavailableError()
	}
	return &ModelInfoResponse{
		ModelType:             meta.ModelType,
		HasPredictProba:       meta.HasPredictProba,
		HasFeatureImportances: meta.HasFeatureImportances,
		NFeatures:             meta.NFeatures,
		Classes:               meta.Classes,
		Success:               true,
	}, nil
}

// PredictOne runs the full single-prediction pipeline: validate, fail fast
// on an unloaded model, check the vector length against the model, then
// predict.
func (s *Service) PredictOne(body []byte) (*SingleResponse, *Error) {
	req, verr := ValidateSingle(body)
	if verr != nil {
		return nil, verr
	}
	meta, ok := s.model.Metadata()
	if !ok {
		return nil, NewModelUnavailableError()
	}
	if verr := checkLength(req.Features, meta.NFeatures, "features"); verr != nil {
		return nil, verr
	}

	result, err := s.predict(req.Features, meta.HasPredictProba)
	if err != nil {
		return nil, err
	}
	return &SingleResponse{
		Prediction:    result.Prediction,
		Probabilities: result.Probabilities,
		Success:       true,
	}, nil
}

// PredictBatch validates the whole batch up front (fail-fast), then scores
// all rows. Output order always matches input order; Count equals the input
// row count.
func (s *Service) PredictBatch(body []byte) (*BatchResponse, *Error) {
	req, verr := ValidateBatch(body)
	if verr != nil {
		return nil, verr
	}
	meta, ok := s.model.Metadata()
	if !ok {
		return nil, NewModelUnavailableError()
	}
	for i, row := range req.Rows {
		if verr := checkLength(row, meta.NFeatures, fmt.Sprintf("data[%d]", i)); verr != nil {
			return nil, verr
		}
	}

	start := time.Now()
	labels, err := s.model.PredictBatch(req.Rows)
	if err != nil {
		return nil, s.classify(err)
	}

	var probs [][]float64
	if meta.HasPredictProba {
		probs = make([][]float64, len(req.Rows))
		for i, row := range req.Rows {
			rowProbs, err := s.model.PredictProba(row)
			if err != nil {
				return nil, s.classify(err)
			}
			probs[i] = rowProbs
		}
	}
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	for i, row := range req.Rows {
		rec := AuditRecord{
			Features:   row,
			Prediction: labels[i],
			LatencyMS:  latency / float64(len(req.Rows)),
			CreatedAt:  time.Now(),
		}
		if probs != nil {
			rec.Confidence = maxFloat(probs[i])
		}
		s.record(rec)
	}

	return &BatchResponse{
		Predictions:   labels,
		Probabilities: probs,
		Count:         len(labels),
		Success:       true,
	}, nil
}

// predict scores one vector, consulting the cache first. Cache hits skip
// the audit write (the audit log records model invocations) but still
// publish an event.
func (s *Service) predict(features []float64, wantProba bool) (Result, *Error) {
	key := cacheKey(features)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.publish(features, cached, 0)
			return cached, nil
		}
	}

	start := time.Now()
	label, err := s.model.Predict(features)
	if err != nil {
		return Result{}, s.classify(err)
	}
	result := Result{Prediction: label}
	if wantProba {
		probs, err := s.model.PredictProba(features)
		if err != nil {
			return Result{}, s.classify(err)
		}
		result.Probabilities = probs
	}
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	if s.cache != nil {
		s.cache.Add(key, result)
	}
	rec := AuditRecord{
		Features:   features,
		Prediction: result.Prediction,
		Confidence: maxFloat(result.Probabilities),
		LatencyMS:  latency,
		CreatedAt:  time.Now(),
	}
	s.record(rec)
	return result, nil
}

// classify maps model-call failures onto the taxonomy: an unloaded model
// (raced with a reload) stays ModelUnavailable, everything else that slipped
// past validation is internal.
func (s *Service) classify(err error) *Error {
	if errors.Is(err, ml.ErrModelNotLoaded) {
		return NewModelUnavailableError()
	}
	s.logger.Error("model invocation failed", zap.Error(err))
	return NewInternalError(err)
}

func (s *Service) record(rec AuditRecord) {
	if s.store != nil {
		if err := s.store.SavePrediction(rec); err != nil {
			s.logger.Warn("audit write failed", zap.Error(err))
		}
	}
	if s.events != nil {
		s.events.PublishPrediction(rec)
	}
}

func (s *Service) publish(features []float64, result Result, latencyMS float64) {
	if s.events == nil {
		return
	}
	s.events.PublishPrediction(AuditRecord{
		Features:   features,
		Prediction: result.Prediction,
		Confidence: maxFloat(result.Probabilities),
		LatencyMS:  latencyMS,
		CreatedAt:  time.Now(),
	})
}

func checkLength(features []float64, nFeatures int, field string) *Error {
	if len(features) != nFeatures {
		return NewValidationError("feature vector has wrong length", map[string]string{
			field: fmt.Sprintf("expected %d values, got %d", nFeatures, len(features)),
		})
	}
	return nil
}

func cacheKey(features []float64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range features {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func maxFloat(values []float64) float64 {
	best := 0.0
	for _, v := range values {
		if v > best {
			best = v
		}
	}
	return best
}
