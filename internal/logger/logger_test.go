package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warning ", LevelWarning, false},
		{"warn", LevelWarning, false},
		{"trace", LevelTrace, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

// TestSetup_JSON verifies level filtering and JSON output
func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(context.Background(), Options{Level: "warn", Output: &buf}); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	defer SetLevel(LevelInfo)

	Info("hidden")
	Warn("shown", "rule", "r1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["rule"] != "r1" {
		t.Errorf("record = %v", rec)
	}
}

func TestSetup_Errors(t *testing.T) {
	if err := Setup(context.Background(), Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := Setup(context.Background(), Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCounters(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(context.Background(), Options{Output: &buf}); err != nil {
		t.Fatal(err)
	}

	warnings := TotalWarnings.Load()
	notFound := Total404Errors.Load()
	unprocessable := Total422Errors.Load()
	degraded := DegradedResults.Load()
	upstream := TotalUpstreamFails.Load()

	WarnHttp4xx(404)
	WarnHttp4xx(422)
	Degraded("applicationClassName", "appType", "generic")
	Upstream("resolve task X", errors.New("timeout"))

	if got := TotalWarnings.Load() - warnings; got != 3 {
		t.Errorf("warnings += %d, want 3", got)
	}
	if Total404Errors.Load()-notFound != 1 || Total422Errors.Load()-unprocessable != 1 {
		t.Error("status counters not incremented")
	}
	if DegradedResults.Load()-degraded != 1 || TotalUpstreamFails.Load()-upstream != 1 {
		t.Error("domain counters not incremented")
	}
	if !strings.Contains(buf.String(), "degraded result: applicationClassName") {
		t.Errorf("degraded warning not logged: %q", buf.String())
	}
}
