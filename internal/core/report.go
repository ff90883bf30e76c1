package core

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/fedragon/go-takeout/internal/models"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

// Manifest collects outcomes and writes them as JSON lines.
type Manifest struct {
	mu       sync.Mutex
	outcomes []models.Outcome
}

func (mf *Manifest) Report(o models.Outcome) {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	mf.outcomes = append(mf.outcomes, o)
}

func (mf *Manifest) Outcomes() []models.Outcome {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return append([]models.Outcome(nil), mf.outcomes...)
}

// WriteFile atomically replaces path with one JSON document per outcome.
func (mf *Manifest) WriteFile(path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, o := range mf.Outcomes() {
		if err := enc.Encode(o); err != nil {
			return err
		}
	}
	return atomic.WriteFile(path, &buf)
}

// LogReporter logs every failed outcome.
type LogReporter struct {
	Logger *zap.Logger
}

func (lr *LogReporter) Report(o models.Outcome) {
	if o.Status != models.StatusError {
		return
	}
	lr.Logger.Warn("File not migrated",
		zap.String("source", o.SourcePath),
		zap.String("stage", string(o.ErrorStage)),
		zap.String("error", o.ErrorDetail),
	)
}

// Reporters fans every outcome out to all of its members.
type Reporters []Reporter

func (rs Reporters) Report(o models.Outcome) {
	for _, r := range rs {
		r.Report(o)
	}
}
