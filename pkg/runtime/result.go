package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveResult persists a scenario result as indented JSON so reports can
// be regenerated later without rerunning the scenario.
func SaveResult(res *ScenarioResult, path string) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create result dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// LoadResult reads a result written by SaveResult.
func LoadResult(path string) (*ScenarioResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	var res ScenarioResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	if res.RunID == "" {
		return nil, fmt.Errorf("%s: not a scenario result", path)
	}
	return &res, nil
}
