package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"

	"github.com/nholik/healthwatch/internal/probe"
)

// Compose service labels that opt a service into monitoring.
const (
	labelProbeURL     = "healthwatch.url"
	labelProbeTimeout = "healthwatch.timeout"
)

// LoadComposeTargets derives probe targets from a compose file. Services
// carrying the healthwatch.url label are monitored; everything else is
// ignored. Returns nil if path is empty.
func LoadComposeTargets(ctx context.Context, path string) ([]probe.Target, error) {
	if path == "" {
		return nil, nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}

	details := types.ConfigDetails{
		WorkingDir: filepath.Dir(path),
		ConfigFiles: []types.ConfigFile{
			{
				Filename: filepath.Base(path),
				Content:  body,
			},
		},
		Environment: types.Mapping{},
	}

	project, err := loader.LoadWithContext(ctx, details, func(opts *loader.Options) {
		opts.SetProjectName("healthwatch", false)
	})
	if err != nil {
		return nil, fmt.Errorf("load compose: %w", err)
	}

	var targets []probe.Target
	for name, service := range project.Services {
		probeURL, ok := service.Labels[labelProbeURL]
		if !ok || probeURL == "" {
			continue
		}
		if err := validateHTTPURL(probeURL, labelProbeURL); err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}

		target := probe.Target{Name: name, URL: probeURL}
		if raw, ok := service.Labels[labelProbeTimeout]; ok && raw != "" {
			timeout, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("service %q: invalid %s: %w", name, labelProbeTimeout, err)
			}
			if timeout <= 0 {
				return nil, fmt.Errorf("service %q: %s must be greater than zero", name, labelProbeTimeout)
			}
			target.Timeout = timeout
		}
		targets = append(targets, target)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("compose file has no services labeled %s", labelProbeURL)
	}

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Name < targets[j].Name
	})
	return targets, nil
}
