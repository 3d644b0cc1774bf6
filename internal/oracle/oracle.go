// Package oracle adapts sentiment classifiers to a single scoring capability.
package oracle

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// #region interfaces

// ScoreOracle scores a sentence and reports the label order scores align to.
// Implementations must be safe for concurrent read-only use.
type ScoreOracle interface {
	Predict(ctx context.Context, sentence string) (map[string]float64, error)
	Labels(ctx context.Context) ([]string, error)
}

// PipelineBackend is a classification pipeline that already returns probabilities.
type PipelineBackend interface {
	Predict(ctx context.Context, sentence string) (map[string]float64, error)
	Labels(ctx context.Context) ([]string, error)
}

// LogitsBackend is a raw model+tokenizer pair that returns unnormalised logits.
type LogitsBackend interface {
	Logits(ctx context.Context, sentence string) ([]float64, []string, error)
	Labels(ctx context.Context) ([]string, error)
}

// #endregion interfaces

// #region label-memo

// labelMemo fetches the label order once and reuses it.
type labelMemo struct {
	mu     sync.Mutex
	labels []string
}

func (m *labelMemo) get(ctx context.Context, fetch func(context.Context) ([]string, error)) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.labels == nil {
		labels, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if len(labels) == 0 {
			return nil, fmt.Errorf("model reported no labels")
		}
		m.labels = labels
	}
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out, nil
}

// #endregion label-memo

// #region pipeline-oracle

// PipelineOracle scores through a classification pipeline.
type PipelineOracle struct {
	backend PipelineBackend
	labels  labelMemo
}

// NewPipelineOracle wraps a pipeline backend.
func NewPipelineOracle(backend PipelineBackend) *PipelineOracle {
	return &PipelineOracle{backend: backend}
}

// Predict returns the pipeline's probabilities unchanged.
func (o *PipelineOracle) Predict(ctx context.Context, sentence string) (map[string]float64, error) {
	return o.backend.Predict(ctx, sentence)
}

// Labels returns the model's label order.
func (o *PipelineOracle) Labels(ctx context.Context) ([]string, error) {
	return o.labels.get(ctx, o.backend.Labels)
}

// #endregion pipeline-oracle

// #region logits-oracle

// LogitsOracle turns raw logits into probabilities with a softmax.
type LogitsOracle struct {
	backend LogitsBackend
	labels  labelMemo
}

// NewLogitsOracle wraps a logits backend.
func NewLogitsOracle(backend LogitsBackend) *LogitsOracle {
	return &LogitsOracle{backend: backend}
}

// Predict applies softmax over the logits and keys the result by label.
func (o *LogitsOracle) Predict(ctx context.Context, sentence string) (map[string]float64, error) {
	logits, labels, err := o.backend.Logits(ctx, sentence)
	if err != nil {
		return nil, err
	}
	if len(logits) != len(labels) {
		return nil, fmt.Errorf("logits: %d values for %d labels", len(logits), len(labels))
	}
	probs := Softmax(logits)
	out := make(map[string]float64, len(labels))
	for i, l := range labels {
		out[l] = probs[i]
	}
	return out, nil
}

// Labels returns the model's label order.
func (o *LogitsOracle) Labels(ctx context.Context) ([]string, error) {
	return o.labels.get(ctx, o.backend.Labels)
}

// #endregion logits-oracle

// #region helpers

// Softmax is the numerically stable softmax of logits.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxV := math.Inf(-1)
	for _, v := range logits {
		if v > maxV {
			maxV = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Vector scores sentence and returns probabilities positioned by labels.
func Vector(ctx context.Context, o ScoreOracle, labels []string, sentence string) ([]float64, error) {
	scores, err := o.Predict(ctx, sentence)
	if err != nil {
		return nil, err
	}
	return Align(scores, labels)
}

// Align orders a label→score map by labels. Every label must be present.
func Align(scores map[string]float64, labels []string) ([]float64, error) {
	vec := make([]float64, len(labels))
	for i, l := range labels {
		v, ok := scores[l]
		if !ok {
			return nil, fmt.Errorf("prediction missing label %q", l)
		}
		vec[i] = v
	}
	return vec, nil
}

// #endregion helpers
