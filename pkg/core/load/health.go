package load

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/orgscope/orgscope-go/pkg/core/activity"
)

// HealthProber is the backend surface the pre-load health check consumes.
type HealthProber interface {
	// Health returns a component-name to status-string map.
	Health(ctx context.Context) (map[string]string, error)

	// AIProviderStatus reports the configured AI provider's advertised state.
	AIProviderStatus(ctx context.Context) (string, error)

	// AIProviderConnectionTest performs a lightweight round trip against
	// the provider.
	AIProviderConnectionTest(ctx context.Context) error
}

// ComponentHealth is the decoded health of one backend component.
type ComponentHealth struct {
	Name    string
	Status  string
	Healthy bool
}

// HealthReport aggregates the backend health probe. Failures recorded here
// are advisory: they never block dashboard usability.
type HealthReport struct {
	Components        []ComponentHealth
	HealthyFraction   float64
	ProviderStatus    string
	ProviderReachable bool
}

// CheckHealth probes backend health before the main load. Every failure
// degrades to an activity entry; the report is always returned.
func (l *Loader) CheckHealth(ctx context.Context, prober HealthProber) HealthReport {
	var report HealthReport

	components, err := prober.Health(ctx)
	if err != nil {
		l.logger.Warn("health probe failed", "error", err)
		l.log.Append(activity.SeverityOffline, "Backend health check unavailable")
	} else {
		names := make([]string, 0, len(components))
		for name := range components {
			names = append(names, name)
		}
		sort.Strings(names)

		healthy := 0
		for _, name := range names {
			status := components[name]
			ok := strings.HasPrefix(status, "available")
			if ok {
				healthy++
			}
			report.Components = append(report.Components, ComponentHealth{
				Name:    name,
				Status:  status,
				Healthy: ok,
			})
			l.logger.Debug("component health", "component", name, "status", status)
		}
		if len(names) > 0 {
			report.HealthyFraction = float64(healthy) / float64(len(names))
		}

		severity := activity.SeverityOnline
		if healthy < len(names) {
			severity = activity.SeverityProcessing
		}
		l.log.Append(severity, fmt.Sprintf("Backend health: %d/%d components available (%.0f%%)", healthy, len(names), report.HealthyFraction*100))
	}

	status, err := prober.AIProviderStatus(ctx)
	if err != nil {
		l.logger.Warn("AI provider status probe failed", "error", err)
		l.log.Append(activity.SeverityOffline, "AI provider status unavailable")
	} else {
		report.ProviderStatus = status
	}

	if err := prober.AIProviderConnectionTest(ctx); err != nil {
		l.logger.Warn("AI provider connection test failed", "error", err)
		l.log.Append(activity.SeverityOffline, "AI provider connection test failed")
	} else {
		report.ProviderReachable = true
	}

	return report
}
