package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nholik/healthwatch/internal/probe"
)

// TargetsFile is the parsed YAML structure for the monitored service list:
// services: [{name, url, timeout}]
type TargetsFile struct {
	Services []probe.Target `yaml:"services"`
}

// LoadTargetsFile parses a YAML targets file from the given path.
// Returns nil if path is empty (no targets file).
func LoadTargetsFile(path string) ([]probe.Target, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	var tf TargetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse targets file: %w", err)
	}

	if err := validateTargets(tf.Services); err != nil {
		return nil, err
	}

	return tf.Services, nil
}

func validateTargets(targets []probe.Target) error {
	if len(targets) == 0 {
		return fmt.Errorf("targets file contains no services")
	}

	seen := make(map[string]bool)

	for i, target := range targets {
		if target.Name == "" {
			return fmt.Errorf("service %d: name is required", i)
		}

		if target.URL == "" {
			return fmt.Errorf("service %q: url is required", target.Name)
		}

		if err := validateHTTPURL(target.URL, "url"); err != nil {
			return fmt.Errorf("service %q: %w", target.Name, err)
		}

		if seen[target.Name] {
			return fmt.Errorf("service %q: duplicate name", target.Name)
		}
		seen[target.Name] = true

		if target.Timeout < 0 {
			return fmt.Errorf("service %q: timeout cannot be negative", target.Name)
		}
	}

	return nil
}
