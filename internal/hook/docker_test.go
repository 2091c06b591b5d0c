package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/recovery"
)

type fakeDockerAPI struct {
	restarted []string
	err       error
}

func (f *fakeDockerAPI) ContainerRestart(_ context.Context, containerID string, _ container.StopOptions) error {
	f.restarted = append(f.restarted, containerID)
	return f.err
}

type fakeNextHook struct {
	applied []recovery.ActionType
}

func (f *fakeNextHook) Apply(_ context.Context, _ string, action recovery.Action) error {
	f.applied = append(f.applied, action.Type)
	return nil
}

func TestDocker_RestartsContainerForRestartAction(t *testing.T) {
	api := &fakeDockerAPI{}
	hook := &Docker{logger: zerolog.Nop(), api: api, timeout: defaultDockerTimeout}

	err := hook.Apply(context.Background(), "payments", recovery.Action{Type: recovery.ActionRestart, Automated: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.restarted) != 1 || api.restarted[0] != "payments" {
		t.Fatalf("expected payments container restart, got %v", api.restarted)
	}
}

func TestDocker_RestartFailurePropagates(t *testing.T) {
	api := &fakeDockerAPI{err: errors.New("no such container")}
	hook := &Docker{logger: zerolog.Nop(), api: api, timeout: defaultDockerTimeout}

	err := hook.Apply(context.Background(), "payments", recovery.Action{Type: recovery.ActionRestart, Automated: true})
	if err == nil {
		t.Fatalf("expected error from docker API")
	}
}

func TestDocker_DelegatesOtherActions(t *testing.T) {
	api := &fakeDockerAPI{}
	next := &fakeNextHook{}
	hook := &Docker{logger: zerolog.Nop(), api: api, timeout: defaultDockerTimeout, next: next}

	err := hook.Apply(context.Background(), "payments", recovery.Action{Type: recovery.ActionFailover, Automated: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.restarted) != 0 {
		t.Fatalf("expected no restart for failover action")
	}
	if len(next.applied) != 1 || next.applied[0] != recovery.ActionFailover {
		t.Fatalf("expected delegation to next hook, got %v", next.applied)
	}
}

func TestDocker_UnsupportedWithoutNextHook(t *testing.T) {
	hook := &Docker{logger: zerolog.Nop(), api: &fakeDockerAPI{}, timeout: defaultDockerTimeout}

	err := hook.Apply(context.Background(), "payments", recovery.Action{Type: recovery.ActionCacheClear, Automated: true})
	if err == nil {
		t.Fatalf("expected error for unsupported action without next hook")
	}
}
