package rules

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseMapping(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    string
		wantErr bool
	}{
		{name: "task to task", expr: "eval.Input.File:=fetch.Output.Users", want: "eval.Input.File:=fetch.Output.Users"},
		{name: "rule output", expr: "*.Output.LogFile:=eval.Output.LogFile", want: "*.Output.LogFile:=eval.Output.LogFile"},
		{name: "spaces trimmed", expr: "fetch.Input.File := *.Input.File", want: "fetch.Input.File:=*.Input.File"},
		{name: "missing assign", expr: "fetch.Input.File", wantErr: true},
		{name: "two assigns", expr: "a.Input.x:=b.Output.y:=c.Output.z", wantErr: true},
		{name: "bad direction", expr: "a.Param.x:=b.Output.y", wantErr: true},
		{name: "too few parts", expr: "a.Input:=b.Output.y", wantErr: true},
		{name: "empty attr", expr: "a.Input.:=b.Output.y", wantErr: true},
		{name: "empty place", expr: ".Input.x:=b.Output.y", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMapping(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMapping(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if err == nil && m.String() != tt.want {
				t.Errorf("ParseMapping(%q) = %q, want %q", tt.expr, m.String(), tt.want)
			}
		})
	}
}

func TestParseMapping_Endpoints(t *testing.T) {
	m, err := ParseMapping("*.Output.CompliancePCT_:=eval.Output.CompliancePCT_")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Dest.IsRule() || m.Source.IsRule() {
		t.Errorf("dest rule=%v source rule=%v", m.Dest.IsRule(), m.Source.IsRule())
	}
	if m.Source.Place != "eval" || m.Source.Direction != DirectionOutput || m.Source.Attr != "CompliancePCT_" {
		t.Errorf("Source = %+v", m.Source)
	}
}

func TestValidateAlias(t *testing.T) {
	tests := []struct {
		alias   string
		wantErr bool
	}{
		{"fetch", false},
		{"my-task_2", false},
		{"1st", false},
		{strings.Repeat("a", 100), false},
		{"", true},
		{"*", true},
		{"a.b", true},
		{"a:b", true},
		{"-lead", true},
		{"has space", true},
		{strings.Repeat("a", 101), true},
	}
	for _, tt := range tests {
		err := validateAlias(tt.alias)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateAlias(%q) error = %v, wantErr %v", tt.alias, err, tt.wantErr)
		}
	}
}

func TestValidateAliases(t *testing.T) {
	aliases, errs := ValidateAliases([]TaskRef{
		{Name: "FetchUsers", Alias: "fetch"},
		{Name: "EvaluateUsers", Alias: "fetch"},
		{Name: "QueryGitHub", Alias: "bad.alias"},
		{Name: "", Alias: "anon"},
	})
	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(errs), errs)
	}
	for _, code := range []string{CodeDuplicateAlias, CodeInvalidAlias, CodeUnknownTask} {
		if !hasCode(errs, code) {
			t.Errorf("missing %s in %v", code, errs)
		}
	}
	if aliases["fetch"] != "FetchUsers" {
		t.Errorf("first alias owner should win, got %q", aliases["fetch"])
	}
}

// TestValidateReferences_RuleInputs verifies that rule inputs may be declared
// in either spec.inputs or spec.inputsMeta
func TestValidateReferences_RuleInputs(t *testing.T) {
	spec := &RuleSpec{
		Tasks:      []TaskRef{fetchTask()},
		Inputs:     map[string]any{"File": "x"},
		InputsMeta: []InputMeta{{Name: "Region"}},
		IOMap: []string{
			"fetch.Input.File:=*.Input.File",
			"fetch.Input.Region:=*.Input.Region",
			"fetch.Input.Region:=*.Input.Zone",
		},
	}
	errs, err := ValidateReferences(context.Background(), testCatalog(), spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 1 || errs[0].Code != CodeUnknownRuleInput {
		t.Fatalf("errs = %v, want one UNKNOWN_RULE_INPUT", errs)
	}
	if errs[0].Mapping != "fetch.Input.Region:=*.Input.Zone" {
		t.Errorf("Mapping = %q", errs[0].Mapping)
	}
}

// TestValidateReferences_UnknownTaskSuppressesAttrChecks verifies that
// mappings on a task missing from the catalog are not reported twice
func TestValidateReferences_UnknownTaskSuppressesAttrChecks(t *testing.T) {
	spec := &RuleSpec{
		Tasks: []TaskRef{{Name: "Ghost", Alias: "g"}},
		IOMap: []string{"*.Output.LogFile:=g.Output.LogFile"},
	}
	errs, err := ValidateReferences(context.Background(), testCatalog(), spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 1 || errs[0].Code != CodeUnknownTask {
		t.Errorf("errs = %v, want one UNKNOWN_TASK", errs)
	}
}

func TestValidationErrors_Is(t *testing.T) {
	var err error = ValidationErrors{{Code: CodeUnknownAlias, Message: "unknown task alias \"x\""}}
	if !strings.Contains(err.Error(), "UNKNOWN_ALIAS") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationErrors should match ErrValidation")
	}
}
