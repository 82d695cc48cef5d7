package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientSamples is returned when fewer runs than required are
	// fed into the statistics engine.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrConditionMismatch is returned when aggregates of different
	// conditions are mixed.
	ErrConditionMismatch = errors.New("condition mismatch")

	// ErrMissingThroughput marks a load artifact without a requests/sec column.
	ErrMissingThroughput = errors.New("no requests-per-second column")
)

// ArtifactError ties a failure to the run directory and file that caused it.
type ArtifactError struct {
	Run      string
	Artifact string
	Err      error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("run %s: artifact %s: %v", e.Run, e.Artifact, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }
