package trace

// #region imports
import (
	"encoding/json"
	"fmt"
	"os"
)

// #endregion

// #region fixture-types

// ExpectedChoice pins the ability a reference policy should pick at one
// decision point, for regression fixtures.
type ExpectedChoice struct {
	Seq     int    `json:"seq"`
	Ability string `json:"ability"`
}

// Fixture bundles a recorded trace with optional expected choices so a
// comparator run can double as a regression check.
type Fixture struct {
	Description string           `json:"description,omitempty"`
	Trace       Trace            `json:"trace"`
	Expected    []ExpectedChoice `json:"expected,omitempty"`
}

// #endregion fixture-types

// #region io

// SaveTrace writes a trace as indented JSON.
func SaveTrace(path string, tr *Trace) error {
	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

// LoadTrace reads a trace JSON file.
func LoadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	var tr Trace
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	return &tr, nil
}

// LoadFixture reads a fixture JSON file. A bare trace file also loads as a
// fixture with no expectations.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Trace.Entries) == 0 {
		var tr Trace
		if err := json.Unmarshal(data, &tr); err == nil && len(tr.Entries) > 0 {
			f.Trace = tr
		}
	}
	return &f, nil
}

// SaveFixture writes a fixture as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}

// #endregion io
