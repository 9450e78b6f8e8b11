package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/pkg/filesystem"
)

// DangerRule describes a regex-based classification rule supplied by the user.
type DangerRule struct {
	Pattern string `yaml:"pattern"`
	Level   string `yaml:"level"`
	Message string `yaml:"message"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		DangerPatterns []DangerRule `yaml:"danger_patterns"`
	} `yaml:"rules"`
}

type compiledRule struct {
	re    *regexp.Regexp
	level domain.OperationRisk
	rule  DangerRule
}

// LoadRules reads extra danger rules. A missing file yields no rules.
func LoadRules(path string) ([]DangerRule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filesystem.ExpandPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules RulesFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rules.Rules.DangerPatterns, nil
}

func compileRules(rules []DangerRule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("danger rule %q: %w", rule.Pattern, err)
		}
		level, err := domain.ParseOperationRisk(rule.Level)
		if err != nil {
			return nil, fmt.Errorf("danger rule %q: %w", rule.Pattern, err)
		}
		compiled = append(compiled, compiledRule{re: re, level: level, rule: rule})
	}
	return compiled, nil
}
