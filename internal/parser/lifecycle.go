package parser

import (
	"encoding/json"
	"fmt"
	"os"
)

// Lifecycle is the content of lifecycle.json, written by the probe
// command or by the process/container manager.
type Lifecycle struct {
	DeployTimeS    *float64 `json:"deploy_time_s"`
	ColdStartMS    *float64 `json:"cold_start_ms"`
	ImageSizeBytes *int64   `json:"image_size_bytes"`
	// Ready is false when the readiness probe never observed success.
	Ready *bool `json:"ready,omitempty"`
}

// ParseLifecycleFile reads a lifecycle.json file.
func ParseLifecycleFile(path string) (*Lifecycle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lc Lifecycle
	if err := json.Unmarshal(data, &lc); err != nil {
		return nil, fmt.Errorf("invalid lifecycle JSON: %w", err)
	}
	if lc.DeployTimeS != nil && *lc.DeployTimeS < 0 {
		return nil, fmt.Errorf("negative deploy_time_s %v", *lc.DeployTimeS)
	}
	if lc.ColdStartMS != nil && *lc.ColdStartMS < 0 {
		return nil, fmt.Errorf("negative cold_start_ms %v", *lc.ColdStartMS)
	}
	return &lc, nil
}

// Merge overlays the non-nil fields of o onto a copy of l.
func (l Lifecycle) Merge(o Lifecycle) Lifecycle {
	if o.DeployTimeS != nil {
		l.DeployTimeS = o.DeployTimeS
	}
	if o.ColdStartMS != nil {
		l.ColdStartMS = o.ColdStartMS
	}
	if o.ImageSizeBytes != nil {
		l.ImageSizeBytes = o.ImageSizeBytes
	}
	if o.Ready != nil {
		l.Ready = o.Ready
	}
	return l
}
