package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHealthCheckerOverallStatus(t *testing.T) {
	hc := &HealthChecker{checks: make(map[string]*HealthCheck)}
	hc.RegisterCheck(PingCheck())

	resp := hc.Check(context.Background())
	if resp.Status != HealthStatusHealthy {
		t.Errorf("Status = %q, want healthy", resp.Status)
	}
	if resp.Checks["ping"].Status != HealthStatusHealthy {
		t.Errorf("ping check = %+v, want healthy", resp.Checks["ping"])
	}

	// A failing non-critical check only degrades.
	hc.RegisterCheck(&HealthCheck{
		Name:      "flaky",
		CheckFunc: func(context.Context) error { return errors.New("meh") },
	})
	if resp := hc.Check(context.Background()); resp.Status != HealthStatusDegraded {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}

	// A failing critical check makes the whole service unhealthy.
	hc.RegisterCheck(StoreCheck(func() error { return errors.New("store closed") }))
	if resp := hc.Check(context.Background()); resp.Status != HealthStatusUnhealthy {
		t.Errorf("Status = %q, want unhealthy", resp.Status)
	}
}

func TestHealthCheckTimeout(t *testing.T) {
	hc := &HealthChecker{checks: make(map[string]*HealthCheck)}
	hc.RegisterCheck(&HealthCheck{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		CheckFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	resp := hc.Check(context.Background())
	if resp.Checks["slow"].Status != HealthStatusDegraded {
		t.Errorf("slow check = %+v, want degraded on timeout", resp.Checks["slow"])
	}
}
