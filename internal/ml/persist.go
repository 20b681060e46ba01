package ml

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const modelFormatVersion = 1

type modelFile struct {
	Version           int
	SavedAt           time.Time
	Config            PipelineConfig
	FeatureNames      []string
	FeatureImportance map[string]float64
	Forest            *RandomForestRegressor
}

// SaveModel writes the trained model to path with encoding/gob.
func (p *Pipeline) SaveModel(path string) error {
	p.mu.RLock()
	mf := modelFile{
		Version:           modelFormatVersion,
		SavedAt:           time.Now().UTC(),
		Config:            p.cfg,
		FeatureNames:      p.featureNames,
		FeatureImportance: p.featureImportance,
		Forest:            p.model,
	}
	p.mu.RUnlock()

	if !mf.Forest.Trained() {
		return ErrModelNotTrained
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(&mf); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close model file: %w", err)
	}

	p.logger.Info("Model saved", slog.String("path", path))
	return nil
}

// LoadModel replaces the current model with the one stored at path.
func (p *Pipeline) LoadModel(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()

	var mf modelFile
	if err := gob.NewDecoder(f).Decode(&mf); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	if mf.Version != modelFormatVersion {
		return fmt.Errorf("unsupported model format version %d", mf.Version)
	}
	if !mf.Forest.Trained() {
		return ErrModelNotTrained
	}

	p.mu.Lock()
	p.model = mf.Forest
	p.featureNames = mf.FeatureNames
	p.featureImportance = mf.FeatureImportance
	p.performance = nil
	p.mu.Unlock()

	p.logger.Info("Model loaded", slog.String("path", path), slog.Time("saved_at", mf.SavedAt))
	return nil
}
