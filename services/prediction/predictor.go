package prediction

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"stock_trading_backend/models"
)

// Artifact is a per-symbol trained classifier produced by the offline
// training pipeline. It is a linear one-vs-rest model: one weight row
// and intercept per class, classes expressed as -1 (sell), 0 (hold)
// and 1 (buy).
type Artifact struct {
	Symbol       string      `json:"symbol"`
	Features     []string    `json:"features"`
	Classes      []int       `json:"classes"`
	Coefficients [][]float64 `json:"coefficients"`
	Intercepts   []float64   `json:"intercepts"`
	TrainedAt    string      `json:"trained_at"`
}

func (a *Artifact) validate() error {
	if len(a.Features) == 0 {
		return fmt.Errorf("artifact for %s has no features", a.Symbol)
	}
	if len(a.Classes) == 0 || len(a.Coefficients) != len(a.Classes) || len(a.Intercepts) != len(a.Classes) {
		return fmt.Errorf("artifact for %s has mismatched class dimensions", a.Symbol)
	}
	for i, row := range a.Coefficients {
		if len(row) != len(a.Features) {
			return fmt.Errorf("artifact for %s class %d has %d weights for %d features", a.Symbol, i, len(row), len(a.Features))
		}
	}
	return nil
}

// Predictor looks up trained artifacts by symbol and scores the latest
// indicator row. It never fails outward: any problem degrades to an
// unavailable prediction.
type Predictor struct {
	dir    string
	mu     sync.RWMutex
	models map[string]*Artifact
}

// NewPredictor creates a predictor over the given artifact directory
// and loads whatever artifacts are present.
func NewPredictor(dir string) *Predictor {
	p := &Predictor{dir: dir, models: make(map[string]*Artifact)}
	if err := p.Reload(); err != nil {
		log.Printf("Model artifacts not loaded: %v", err)
	}
	return p
}

// Reload rescans the artifact directory. Corrupt artifacts are skipped
// and logged; they do not prevent other symbols from loading.
func (p *Predictor) Reload() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no models trained yet
		}
		return fmt.Errorf("failed to read model directory: %w", err)
	}

	loaded := make(map[string]*Artifact)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(p.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Failed to read model %s: %v", path, err)
			continue
		}
		var artifact Artifact
		if err := json.Unmarshal(data, &artifact); err != nil {
			log.Printf("Corrupt model artifact %s: %v", path, err)
			continue
		}
		if artifact.Symbol == "" {
			artifact.Symbol = strings.TrimSuffix(entry.Name(), ".json")
		}
		if err := artifact.validate(); err != nil {
			log.Printf("Invalid model artifact %s: %v", path, err)
			continue
		}
		loaded[strings.ToUpper(artifact.Symbol)] = &artifact
	}

	p.mu.Lock()
	p.models = loaded
	p.mu.Unlock()
	if len(loaded) > 0 {
		log.Printf("Loaded %d model artifacts from %s", len(loaded), p.dir)
	}
	return nil
}

// Has reports whether a trained model exists for the symbol.
func (p *Predictor) Has(symbol string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.models[strings.ToUpper(symbol)]
	return ok
}

// Predict scores the latest indicator row for a symbol. The second
// return value is false when no prediction is available: missing model,
// or any required feature still in its warm-up window.
func (p *Predictor) Predict(symbol string, row map[string]float64) (models.Signal, bool) {
	p.mu.RLock()
	artifact, ok := p.models[strings.ToUpper(symbol)]
	p.mu.RUnlock()
	if !ok {
		return models.SignalHold, false
	}

	features := make([]float64, len(artifact.Features))
	for i, name := range artifact.Features {
		v, ok := row[name]
		if !ok || math.IsNaN(v) {
			log.Printf("Model for %s unavailable: feature %s undefined", symbol, name)
			return models.SignalHold, false
		}
		features[i] = v
	}

	best := 0
	bestScore := math.Inf(-1)
	for c := range artifact.Classes {
		score := artifact.Intercepts[c]
		for i, w := range artifact.Coefficients[c] {
			score += w * features[i]
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
	}

	switch artifact.Classes[best] {
	case 1:
		return models.SignalBuy, true
	case -1:
		return models.SignalSell, true
	default:
		return models.SignalHold, true
	}
}
