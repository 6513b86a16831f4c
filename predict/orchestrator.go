package predict

import (
	"math"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"roadwatch/model"
)

// ModelSet is the read-only slice of the registry the orchestrator needs.
type ModelSet interface {
	Models() []model.Handle
	Scaler() *model.Scaler
	FeatureCount() int
}

// Result is one model's normalized output. Probs is nil for models without
// probability support; consumers degrade to label-only display.
type Result struct {
	Model     string    `json:"model"`
	Label     int       `json:"label"`
	LabelName string    `json:"label_name"`
	Probs     []float64 `json:"probs,omitempty"`
}

// Ensemble holds exactly one Result per registered model, in registry order.
type Ensemble struct {
	Results []Result `json:"results"`
}

// AnySevere reports whether at least one model predicted the most severe
// class. A single model is enough to trip alerting; consensus is not
// required.
func (e Ensemble) AnySevere() bool {
	for _, r := range e.Results {
		if r.Label == model.SevereClass {
			return true
		}
	}
	return false
}

// Config tunes the orchestrator.
type Config struct {
	// CacheSize bounds the LRU of recent ensemble results keyed by the raw
	// feature vector. Zero disables caching.
	CacheSize int
	// ScaleInputs applies the fitted scaler before invoking the models.
	// Off by default: callers are expected to supply values in training
	// units already.
	ScaleInputs bool
}

// Orchestrator runs one feature vector through every registered model and
// merges the outputs. It is safe for concurrent use.
type Orchestrator struct {
	set         ModelSet
	cache       *lru.Cache[string, Ensemble]
	scaleInputs bool
	log         *zap.Logger
}

func New(set ModelSet, cfg Config, log *zap.Logger) (*Orchestrator, error) {
	o := &Orchestrator{
		set:         set,
		scaleInputs: cfg.ScaleInputs,
		log:         log,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, Ensemble](cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		o.cache = cache
	}
	return o, nil
}

// Predict validates the vector, invokes every model, and returns the merged
// ensemble. Validation failures surface as *InvalidInputError with no model
// invoked; any model failure surfaces as *InferenceError and fails the whole
// request.
func (o *Orchestrator) Predict(features []float64) (Ensemble, error) {
	if err := o.validate(features); err != nil {
		return Ensemble{}, err
	}

	key := cacheKey(features)
	if o.cache != nil {
		if cached, ok := o.cache.Get(key); ok {
			o.log.Debug("ensemble cache hit", zap.String("features", key))
			return cached, nil
		}
	}

	input := features
	if o.scaleInputs {
		scaled, err := o.set.Scaler().Transform(features)
		if err != nil {
			return Ensemble{}, &InvalidInputError{Reason: err.Error()}
		}
		input = scaled
	}

	handles := o.set.Models()
	ens := Ensemble{Results: make([]Result, 0, len(handles))}
	for _, h := range handles {
		res, err := invoke(h, input)
		if err != nil {
			return Ensemble{}, &InferenceError{Model: h.Name, Err: err}
		}
		ens.Results = append(ens.Results, res)
	}

	if o.cache != nil {
		o.cache.Add(key, ens)
	}
	return ens, nil
}

// invoke normalizes the two model contracts into one Result. Flat models
// report their own label; sequence models report a distribution and the label
// is derived as the argmax, ties resolving to the lowest index.
func invoke(h model.Handle, input []float64) (Result, error) {
	res := Result{Model: h.Name}

	switch h.Shape {
	case model.SingleStepSequence:
		probs, err := h.Model.PredictProba(input)
		if err != nil {
			return Result{}, err
		}
		res.Probs = probs
		res.Label = argmaxLowest(probs)
	default:
		label, err := h.Model.Predict(input)
		if err != nil {
			return Result{}, err
		}
		res.Label = label
		if h.HasProba {
			probs, err := h.Model.PredictProba(input)
			if err != nil {
				return Result{}, err
			}
			res.Probs = probs
		}
	}

	res.LabelName = model.LabelName(res.Label)
	return res, nil
}

func (o *Orchestrator) validate(features []float64) error {
	want := o.set.FeatureCount()
	if len(features) != want {
		return &InvalidInputError{
			Reason: "expected " + strconv.Itoa(want) + " features, got " + strconv.Itoa(len(features)),
		}
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidInputError{Reason: "feature " + strconv.Itoa(i) + " is not a finite number"}
		}
	}
	return nil
}

func argmaxLowest(probs []float64) int {
	best := 0
	for i, p := range probs[1:] {
		if p > probs[best] {
			best = i + 1
		}
	}
	return best
}

func cacheKey(features []float64) string {
	var b strings.Builder
	for i, v := range features {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}
