// Package testutil loads the YAML scenarios shared by the conformance tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/thomasrohde/exprtree/pkg/config"
)

// ScenariosDir is the scenario root, relative to the module root.
const ScenariosDir = "testdata/scenarios"

// ScenarioFile is the file every scenario directory contains.
const ScenarioFile = "scenario.yaml"

// Scenario describes one program run and its expected outcome.
type Scenario struct {
	// Cmd is the CLI command and its arguments, e.g. [run, program.yaml].
	Cmd []string `yaml:"cmd"`
	// Config stands in for the config file. Nil means defaults.
	Config *config.Config `yaml:"config,omitempty"`
	// Validate defaults to true; false runs the program unchecked.
	Validate *bool          `yaml:"validate,omitempty"`
	Meta     *ScenarioMeta  `yaml:"meta,omitempty"`
	Expect   ExpectedResult `yaml:"expect"`
}

// ScenarioMeta holds optional scenario metadata.
type ScenarioMeta struct {
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// ExpectedResult describes the expected outcome of a scenario.
type ExpectedResult struct {
	ExitCode       int              `yaml:"exitCode"`
	Stdout         *string          `yaml:"stdout,omitempty"`
	Value          *int64           `yaml:"value,omitempty"`
	Variables      map[string]int64 `yaml:"variables,omitempty"`
	ErrorCode      string           `yaml:"errorCode,omitempty"`
	StderrContains string           `yaml:"stderrContains,omitempty"`
	// Warnings lists the codes of static hazards reported by a run, in order.
	Warnings []string `yaml:"warnings,omitempty"`
}

// ValidationEnabled reports whether the program is checked before it runs.
func (s *Scenario) ValidationEnabled() bool {
	return s.Validate == nil || *s.Validate
}

// LoadScenario loads the scenario in dir. Unknown keys are errors.
func LoadScenario(dir string) (*Scenario, error) {
	data, err := os.ReadFile(filepath.Join(dir, ScenarioFile))
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	if len(s.Cmd) == 0 {
		return nil, fmt.Errorf("%s: cmd is empty", dir)
	}
	return &s, nil
}

// ListScenarios returns all scenario directories under the given root.
func ListScenarios(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			scenarioPath := filepath.Join(root, e.Name(), ScenarioFile)
			if _, err := os.Stat(scenarioPath); err == nil {
				dirs = append(dirs, filepath.Join(root, e.Name()))
			}
		}
	}
	return dirs, nil
}

// ReadProgramFile reads the program file named by the scenario cmd.
func ReadProgramFile(scenarioDir string, cmd []string) ([]byte, string, error) {
	if len(cmd) < 2 {
		return nil, "", fmt.Errorf("cmd %v names no program file", cmd)
	}
	filename := cmd[1]
	source, err := os.ReadFile(filepath.Join(scenarioDir, filename))
	if err != nil {
		return nil, "", err
	}
	return source, filename, nil
}
