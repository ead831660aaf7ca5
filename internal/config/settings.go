package config

import (
	"encoding/json"
	"fmt"
)

// toSettings flattens cfg into the top-level map viper writes, keyed by the
// same names the loader reads
func toSettings(cfg *Config) (map[string]interface{}, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	// Durations are written in their string form so they read back unchanged
	if sb, ok := settings["sandbox"].(map[string]interface{}); ok {
		if limits, ok := sb["resource_limits"].(map[string]interface{}); ok {
			limits["timeout"] = cfg.Sandbox.ResourceLimits.Timeout.String()
		}
	}

	return settings, nil
}
