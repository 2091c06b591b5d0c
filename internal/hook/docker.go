package hook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/recovery"
)

const defaultDockerTimeout = 30 * time.Second

// dockerAPI is the slice of the Docker SDK the hook uses.
type dockerAPI interface {
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
}

// Docker applies restart actions by restarting the service's container via
// the Docker API. Other action kinds delegate to the next hook in the chain.
type Docker struct {
	logger  zerolog.Logger
	api     dockerAPI
	timeout time.Duration
	next    recovery.Hook
}

// NewDocker initializes a Docker-backed recovery hook for the given API
// host. The container restarted for a service is the container named after
// it.
func NewDocker(logger zerolog.Logger, host string, next recovery.Hook) (*Docker, error) {
	httpClient := &http.Client{Timeout: defaultDockerTimeout}

	opts := []client.Opt{
		client.WithAPIVersionNegotiation(),
		client.WithHTTPClient(httpClient),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("init docker client: %w", err)
	}

	return &Docker{
		logger:  logger,
		api:     api,
		timeout: defaultDockerTimeout,
		next:    next,
	}, nil
}

// Apply implements recovery.Hook.
func (h *Docker) Apply(ctx context.Context, service string, action recovery.Action) error {
	if action.Type != recovery.ActionRestart {
		if h.next == nil {
			return fmt.Errorf("action %s not supported by docker hook", action.Type)
		}
		return h.next.Apply(ctx, service, action)
	}

	if h.api == nil {
		return errors.New("docker client is not initialized")
	}

	restartCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.api.ContainerRestart(restartCtx, service, container.StopOptions{}); err != nil {
		return fmt.Errorf("restart container %s: %w", service, err)
	}

	h.logger.Info().
		Str("service", service).
		Msg("container restarted")
	return nil
}
