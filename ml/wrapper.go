package ml

import (
	"sync"

	"go.uber.org/zap"
)

// Wrapper owns the process-lifetime model instance. A failed load leaves it
// in an unloaded state that every prediction path can observe; it never
// takes the process down. Reload swaps the model atomically under the lock,
// so concurrent readers always see either the old or the new model.
type Wrapper struct {
	mu       sync.RWMutex
	model    Classifier
	meta     Metadata
	path     string
	logger   *zap.Logger
	onReload func()
}

func NewWrapper(path string, logger *zap.Logger) *Wrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wrapper{path: path, logger: logger}
}

// OnReload registers a callback invoked after every successful (re)load.
// Must be called before the wrapper is shared across goroutines.
func (w *Wrapper) OnReload(fn func()) {
	w.onReload = fn
}

func (w *Wrapper) Path() string {
	return w.path
}

// Load reads the artifact from disk. On failure the previous state is kept:
// an unloaded wrapper stays unloaded, a loaded one keeps serving the old
// model.
func (w *Wrapper) Load() error {
	model, err := LoadModel(w.path)
	if err != nil {
		w.logger.Warn("model load failed",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return err
	}
	meta := model.Metadata()

	w.mu.Lock()
	w.model = model
	w.meta = meta
	w.mu.Unlock()

	w.logger.Info("model loaded",
		zap.String("path", w.path),
		zap.String("model_type", meta.ModelType),
		zap.Int("n_features", meta.NFeatures),
		zap.Int("n_classes", len(meta.Classes)),
	)
	if w.onReload != nil {
		w.onReload()
	}
	return nil
}

func (w *Wrapper) Loaded() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.model != nil
}

// Metadata returns the loaded model's metadata; ok is false while unloaded.
func (w *Wrapper) Metadata() (Metadata, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.model == nil {
		return Metadata{}, false
	}
	return w.meta, true
}

func (w *Wrapper) Predict(features []float64) (int, error) {
	model := w.current()
	if model == nil {
		return 0, ErrModelNotLoaded
	}
	return model.Predict(features)
}

func (w *Wrapper) PredictProba(features []float64) ([]float64, error) {
	model := w.current()
	if model == nil {
		return nil, ErrModelNotLoaded
	}
	pc, ok := model.(ProbabilityClassifier)
	if !ok {
		return nil, ErrNoProbabilities
	}
	return pc.PredictProba(features)
}

// PredictBatch scores all rows with one model call when the model supports
// batching, falling back to row-by-row otherwise.
func (w *Wrapper) PredictBatch(rows [][]float64) ([]int, error) {
	model := w.current()
	if model == nil {
		return nil, ErrModelNotLoaded
	}
	if bc, ok := model.(BatchClassifier); ok {
		return bc.PredictBatch(rows)
	}
	labels := make([]int, len(rows))
	for i, row := range rows {
		label, err := model.Predict(row)
		if err != nil {
			return nil, err
		}
		labels[i] = label
	}
	return labels, nil
}

func (w *Wrapper) current() Classifier {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.model
}
