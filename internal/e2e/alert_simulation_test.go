package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

type alertScenario struct {
	name       string
	severity   string
	threshold  float64
	actual     float64
	window     time.Duration
	runbookRef string
}

type ruleFile struct {
	Groups []struct {
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

func TestAlertSimulationProducesFiringAndResolvedLogs(t *testing.T) {
	scenarios := []alertScenario{
		{name: "HighErrorRate", severity: "critical", threshold: 0.05, actual: 0.08, window: 10 * time.Minute, runbookRef: "docs/runbook-ops.md#high-error-rate"},
		{name: "HighLatency", severity: "warning", threshold: 1, actual: 1.4, window: 15 * time.Minute, runbookRef: "docs/runbook-ops.md#high-latency"},
		{name: "ExpirationSweepFailing", severity: "warning", threshold: 2, actual: 4, window: 30 * time.Minute, runbookRef: "docs/runbook-ops.md#expiration-sweep-failing"},
		{name: "ExpirationSweepStalled", severity: "critical", threshold: 0, actual: 0, window: 30 * time.Minute, runbookRef: "docs/runbook-ops.md#expiration-sweep-stalled"},
	}

	rules := loadRules(t)
	anchors := runbookAnchors(t)

	var logBuilder strings.Builder
	for _, scenario := range scenarios {
		rule, ok := rules[scenario.name]
		if !ok {
			t.Fatalf("alert %s not defined in rule file", scenario.name)
		}
		if rule.severity != scenario.severity {
			t.Fatalf("%s severity = %s, want %s", scenario.name, rule.severity, scenario.severity)
		}
		if rule.runbook != scenario.runbookRef {
			t.Fatalf("%s runbook = %s, want %s", scenario.name, rule.runbook, scenario.runbookRef)
		}
		anchor := scenario.runbookRef[strings.Index(scenario.runbookRef, "#")+1:]
		if !anchors[anchor] {
			t.Fatalf("runbook has no section for %s", anchor)
		}
		logBuilder.WriteString(renderAlertLog("FIRING", scenario))
		logBuilder.WriteString(renderAlertLog("RESOLVED", scenario))
	}

	logOutput := logBuilder.String()
	for _, scenario := range scenarios {
		if !strings.Contains(logOutput, renderAlertLog("FIRING", scenario)) {
			t.Fatalf("expected log to contain firing entry for %s", scenario.name)
		}
		if !strings.Contains(logOutput, renderAlertLog("RESOLVED", scenario)) {
			t.Fatalf("expected log to contain resolved entry for %s", scenario.name)
		}
	}
}

type ruleSummary struct {
	severity string
	runbook  string
}

func loadRules(t *testing.T) map[string]ruleSummary {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "lumen.yml"))
	if err != nil {
		t.Fatalf("read rules: %v", err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	out := make(map[string]ruleSummary)
	for _, group := range file.Groups {
		for _, rule := range group.Rules {
			out[rule.Alert] = ruleSummary{severity: rule.Labels["severity"], runbook: rule.Annotations["runbook"]}
		}
	}
	return out
}

// runbookAnchors returns the GitHub-style anchors of every heading.
func runbookAnchors(t *testing.T) map[string]bool {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-ops.md"))
	if err != nil {
		t.Fatalf("read runbook: %v", err)
	}
	anchors := make(map[string]bool)
	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.HasPrefix(line, "#") {
			continue
		}
		title := strings.TrimSpace(strings.TrimLeft(line, "#"))
		anchors[strings.ReplaceAll(strings.ToLower(title), " ", "-")] = true
	}
	return anchors
}

func renderAlertLog(state string, scenario alertScenario) string {
	return fmt.Sprintf("%s %s severity=%s actual=%.2f threshold=%.2f window=%s runbook=%s\n",
		state, scenario.name, scenario.severity, scenario.actual, scenario.threshold, scenario.window, scenario.runbookRef)
}
