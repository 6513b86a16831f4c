package model

import (
	"fmt"
	"path/filepath"
)

// Artifact filenames the registry expects inside the artifact directory.
const (
	LogisticFile = "logistic_model.json"
	TreeFile     = "decision_tree_model.json"
	ForestFile   = "random_forest_model.json"
	BoostFile    = "xgboost_model.json"
	LSTMFile     = "lstm_model.json"
	ScalerFile   = "scaler.json"
)

// Registry holds the full model set plus the fitted scaler. It is built once
// at startup and never mutated, so handles may be invoked concurrently
// without locking. A registry is all-or-nothing: any missing or malformed
// artifact aborts the load.
type Registry struct {
	dir     string
	handles []Handle
	scaler  *Scaler
}

// Load reads every artifact from dir. The returned handle order is fixed and
// matches the ledger's column order.
func Load(dir string) (*Registry, error) {
	scaler, err := LoadScaler(filepath.Join(dir, ScalerFile))
	if err != nil {
		return nil, err
	}
	features := scaler.FeatureCount()

	logistic, err := LoadLogistic(filepath.Join(dir, LogisticFile))
	if err != nil {
		return nil, err
	}
	tree, err := LoadDecisionTree(filepath.Join(dir, TreeFile))
	if err != nil {
		return nil, err
	}
	forest, err := LoadRandomForest(filepath.Join(dir, ForestFile))
	if err != nil {
		return nil, err
	}
	boost, err := LoadGradientBoost(filepath.Join(dir, BoostFile))
	if err != nil {
		return nil, err
	}
	lstm, err := LoadLSTM(filepath.Join(dir, LSTMFile))
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		dir:    dir,
		scaler: scaler,
		handles: []Handle{
			{Name: "Logistic Regression", Key: "logistic", Shape: FlatVector, HasProba: true, Model: logistic},
			{Name: "Decision Tree", Key: "decision_tree", Shape: FlatVector, HasProba: true, Model: tree},
			{Name: "Random Forest", Key: "random_forest", Shape: FlatVector, HasProba: true, Model: forest},
			{Name: "XGBoost", Key: "xgboost", Shape: FlatVector, HasProba: true, Model: boost},
			{Name: "LSTM", Key: "lstm", Shape: SingleStepSequence, HasProba: true, Model: lstm},
		},
	}

	for name, got := range map[string]int{
		"logistic": logistic.Features,
		"decision tree": tree.Features,
		"random forest": forest.Features,
		"xgboost": boost.Features,
		"lstm": lstm.Features,
	} {
		if got != features {
			return nil, &ArtifactError{
				Path: dir,
				Err:  fmt.Errorf("%s expects %d features, scaler was fitted on %d", name, got, features),
			}
		}
	}

	return reg, nil
}

// Models returns the registered handles in registry order.
func (r *Registry) Models() []Handle {
	handles := make([]Handle, len(r.handles))
	copy(handles, r.handles)
	return handles
}

// Keys returns the ledger column keys in registry order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.handles))
	for i, h := range r.handles {
		keys[i] = h.Key
	}
	return keys
}

func (r *Registry) Scaler() *Scaler { return r.scaler }

func (r *Registry) FeatureCount() int { return r.scaler.FeatureCount() }

func (r *Registry) Dir() string { return r.dir }
