package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pennwright/saga/internal/domain/entities"
)

// LoadRules loads a project's rulebook, filling unset groups from the
// built-in defaults. A missing file is the full default rulebook.
func LoadRules(basePath, projectName string) (entities.Rules, error) {
	rulesFile := RulesPathForProject(basePath, projectName)

	data, err := os.ReadFile(rulesFile)
	if os.IsNotExist(err) {
		return entities.DefaultRules(), nil
	}
	if err != nil {
		return entities.Rules{}, fmt.Errorf("reading rules file: %w", err)
	}

	var rules entities.Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return entities.Rules{}, fmt.Errorf("parsing rules file: %w", err)
	}
	rules.ApplyDefaults()

	if _, err := entities.ParseSeverity(rules.Gate.BlockingSeverity); err != nil {
		return entities.Rules{}, fmt.Errorf("invalid gate.blocking_severity: %w", err)
	}
	return rules, nil
}

// SaveRules writes a project's rulebook.
func SaveRules(basePath, projectName string, rules entities.Rules) error {
	rulesFile := RulesPathForProject(basePath, projectName)

	if err := os.MkdirAll(filepath.Dir(rulesFile), 0755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}

	if err := os.WriteFile(rulesFile, data, 0644); err != nil {
		return fmt.Errorf("writing rules file: %w", err)
	}

	return nil
}
