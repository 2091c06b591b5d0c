package insight

import (
	"fmt"
	"sort"

	"github.com/nholik/healthwatch/internal/health"
	"github.com/nholik/healthwatch/internal/incident"
)

// minTrendPoints is the minimum history depth before trend rules fire.
const minTrendPoints = 3

// rule inspects the health history window and recent incidents and returns
// zero or more insights.
type rule func(window []map[string]health.ServiceHealth, incidents []incident.Incident) []Insight

var defaultRules = []rule{
	errorTrendRule,
	responseTrendRule,
	recurringIncidentRule,
	silentServiceRule,
}

// errorTrendRule flags services whose error rate is climbing toward the
// recovery threshold.
func errorTrendRule(window []map[string]health.ServiceHealth, _ []incident.Incident) []Insight {
	if len(window) < minTrendPoints {
		return nil
	}

	first := window[0]
	last := window[len(window)-1]

	var insights []Insight
	for _, name := range sortedServices(last) {
		current := last[name]
		previous, ok := first[name]
		if !ok {
			continue
		}
		if current.ErrorRate <= previous.ErrorRate {
			continue
		}
		if current.ErrorRate < health.DegradedErrorRate/2 {
			continue
		}

		probability := current.ErrorRate * 2
		if probability > 0.9 {
			probability = 0.9
		}
		insights = append(insights, Insight{
			Type:            KindWarning,
			Message:         fmt.Sprintf("error rate on %s climbed from %.2f to %.2f", name, previous.ErrorRate, current.ErrorRate),
			Probability:     probability,
			Timeframe:       "next 30 minutes",
			SuggestedAction: fmt.Sprintf("investigate error sources on %s before automated recovery triggers", name),
		})
	}
	return insights
}

// responseTrendRule flags services slowing toward the degraded threshold.
func responseTrendRule(window []map[string]health.ServiceHealth, _ []incident.Incident) []Insight {
	if len(window) < minTrendPoints {
		return nil
	}

	first := window[0]
	last := window[len(window)-1]

	var insights []Insight
	for _, name := range sortedServices(last) {
		current := last[name]
		previous, ok := first[name]
		if !ok {
			continue
		}
		if current.ResponseTimeMS <= previous.ResponseTimeMS {
			continue
		}
		if current.ResponseTimeMS < health.DegradedResponseTimeMS/2 {
			continue
		}

		insights = append(insights, Insight{
			Type:        KindInfo,
			Message:     fmt.Sprintf("response time on %s rose from %dms to %dms", name, previous.ResponseTimeMS, current.ResponseTimeMS),
			Probability: 0.5,
			Timeframe:   "next hour",
		})
	}
	return insights
}

// recurringIncidentRule flags services that keep needing recovery.
func recurringIncidentRule(_ []map[string]health.ServiceHealth, incidents []incident.Incident) []Insight {
	counts := make(map[string]int)
	for _, inc := range incidents {
		counts[inc.Service]++
	}

	services := make([]string, 0, len(counts))
	for name := range counts {
		services = append(services, name)
	}
	sort.Strings(services)

	var insights []Insight
	for _, name := range services {
		if counts[name] < 3 {
			continue
		}
		insights = append(insights, Insight{
			Type:            KindCritical,
			Message:         fmt.Sprintf("%s required recovery %d times recently", name, counts[name]),
			Probability:     0.85,
			Timeframe:       "ongoing",
			SuggestedAction: fmt.Sprintf("automated recovery is not holding for %s; schedule manual intervention", name),
		})
	}
	return insights
}

// silentServiceRule flags services with no recent health data.
func silentServiceRule(window []map[string]health.ServiceHealth, _ []incident.Incident) []Insight {
	if len(window) == 0 {
		return nil
	}
	last := window[len(window)-1]

	var insights []Insight
	for _, name := range sortedServices(last) {
		if last[name].Status != health.StatusUnknown {
			continue
		}
		insights = append(insights, Insight{
			Type:            KindWarning,
			Message:         fmt.Sprintf("no recent health data for %s", name),
			Probability:     0.6,
			Timeframe:       "now",
			SuggestedAction: fmt.Sprintf("verify %s probe endpoint is reachable", name),
		})
	}
	return insights
}

func sortedServices(view map[string]health.ServiceHealth) []string {
	names := make([]string, 0, len(view))
	for name := range view {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
