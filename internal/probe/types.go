package probe

import (
	"time"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/bootstrap"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/eval"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/oracle"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/search"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/store"
	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/transform"
)

// #region models

// Models are the injected model capabilities a probe needs. Embeddings and
// MaskedLM are both optional, but at least one must be set.
type Models struct {
	Oracle           oracle.ScoreOracle
	Embeddings       transform.EmbeddingModel
	MaskedLM         transform.MaskedLM
	Paraphraser      bootstrap.ParaphraseModel
	SentenceEmbedder bootstrap.Embedder
}

// #endregion models

// #region config

// Config holds the settings of one probe run.
type Config struct {
	MinEditDistance int
	MinLength       int
	MaxLength       int
	Epsilon         float64 // target precision as 10^-d

	EmbeddingCandidates int  // neighbours asked per word
	MaskedLMCandidates  int  // fillers asked per word
	CharDeletion        bool // add the character deletion family
	OracleCacheSize     int  // 0 disables the score cache
	ProposalCacheSize   int  // 0 disables proposal memoisation

	Timeout time.Duration // 0 means no limit

	RelaxStep      float64 // similarity threshold decrement per relaxation
	MaxRelaxations int

	Search    search.Config
	Bootstrap bootstrap.Config
	Eval      eval.EvalConfig
}

// DefaultConfig returns the standard run settings.
func DefaultConfig() Config {
	return Config{
		MinEditDistance:     30,
		MinLength:           40,
		MaxLength:           60,
		Epsilon:             1e-3,
		EmbeddingCandidates: 30,
		MaskedLMCandidates:  40,
		CharDeletion:        true,
		OracleCacheSize:     16384,
		ProposalCacheSize:   4096,
		RelaxStep:           0.05,
		MaxRelaxations:      2,
		Search:              search.DefaultConfig(),
		Bootstrap:           bootstrap.DefaultConfig(),
		Eval:                eval.DefaultEvalConfig(),
	}
}

// #endregion config

// #region recorder

// Recorder persists run progress. *store.Store satisfies it.
type Recorder interface {
	SaveRun(rec store.RunRecord) error
	RecordIteration(it store.IterationRecord) error
	LogDecision(entry store.ProvenanceEntry) error
}

// #endregion recorder

// #region result

// Result is the outcome of a probe run.
type Result struct {
	RunID          string
	Reference      string
	Seed           string             // bootstrap paraphrase the search started from
	Sentence       string             // final sentence
	Scores         map[string]float64 // fresh oracle scores of Sentence
	Target         map[string]float64
	ElapsedSeconds float64 // search wall time
	Status         search.Status
	Iterations     int
	Evaluations    int
	RNGSeed        int64
	Validation     eval.EvalResult
}

// Succeeded reports whether the search matched the target.
func (r Result) Succeeded() bool {
	return r.Status == search.StatusSucceeded
}

// #endregion result
