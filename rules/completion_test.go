package rules

import (
	"reflect"
	"testing"
)

func TestAnalyzeScenarios(t *testing.T) {
	a := NewAnalyzer("")

	tests := []struct {
		name     string
		spec     RuleSpec
		status   Status
		phase    Phase
		progress int
	}{
		{
			name:     "empty rule",
			spec:     RuleSpec{},
			status:   StatusDraft,
			phase:    PhaseInitialized,
			progress: 5,
		},
		{
			name: "one task, nothing collected",
			spec: RuleSpec{
				Tasks:      []TaskRef{fetchTask()},
				InputsMeta: fetchInputsMeta(),
			},
			status:   StatusDraft,
			phase:    PhaseTasksSelected,
			progress: 25,
		},
		{
			name: "one of two collected",
			spec: RuleSpec{
				Tasks:      []TaskRef{fetchTask()},
				Inputs:     map[string]any{"File": "s3://bucket/users.json", "Region": ""},
				InputsMeta: fetchInputsMeta(),
			},
			status:   StatusDraft,
			phase:    PhaseCollectingInputs,
			progress: 55,
		},
		{
			name: "all collected with mandatory outputs",
			spec: RuleSpec{
				Tasks:       []TaskRef{fetchTask()},
				Inputs:      map[string]any{"File": "s3://bucket/users.json", "Region": "eu"},
				InputsMeta:  fetchInputsMeta(),
				OutputsMeta: mandatoryOutputs(),
			},
			status:   StatusReadyForCreation,
			phase:    PhaseInputsCollected,
			progress: 85,
		},
		{
			name: "complete with io map",
			spec: RuleSpec{
				Tasks:       []TaskRef{fetchTask()},
				Inputs:      map[string]any{"File": "s3://bucket/users.json", "Region": "eu"},
				InputsMeta:  fetchInputsMeta(),
				OutputsMeta: mandatoryOutputs(),
				IOMap:       []string{"fetch.Input.File:=*.Input.File"},
			},
			status:   StatusActive,
			phase:    PhaseCompleted,
			progress: 100,
		},
		{
			name: "all collected but mandatory outputs missing",
			spec: RuleSpec{
				Tasks:      []TaskRef{fetchTask()},
				Inputs:     map[string]any{"File": "s3://bucket/users.json", "Region": "eu"},
				InputsMeta: fetchInputsMeta(),
				IOMap:      []string{"fetch.Input.File:=*.Input.File"},
			},
			status:   StatusDraft,
			phase:    PhaseCollectingInputs,
			progress: 85,
		},
		{
			name: "collected inputs without tasks",
			spec: RuleSpec{
				Inputs:     map[string]any{"File": "x"},
				InputsMeta: []InputMeta{{Name: "File"}},
			},
			status:   StatusDraft,
			phase:    PhaseInitialized,
			progress: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Analyze(&tt.spec)
			if err != nil {
				t.Fatalf("Analyze() failed: %v", err)
			}
			if got.Status != tt.status || got.Phase != tt.phase || got.ProgressPercentage != tt.progress {
				t.Errorf("Analyze() = %s/%s/%d, want %s/%s/%d",
					got.Status, got.Phase, got.ProgressPercentage, tt.status, tt.phase, tt.progress)
			}
		})
	}
}

// TestStatusTableTotality verifies that exactly one of the conditional rows
// (or the final fallback) applies for every combination of facts
func TestStatusTableTotality(t *testing.T) {
	bools := []bool{false, true}
	for _, hasTasks := range bools {
		for _, hasIO := range bools {
			for _, mandatory := range bools {
				for _, match := range bools {
					for metaCount := 0; metaCount <= 3; metaCount++ {
						for collected := 0; collected <= metaCount; collected++ {
							f := Facts{
								HasTasks:            hasTasks,
								InputsMetaCount:     metaCount,
								InputsCollected:     collected,
								HasIOMapping:        hasIO,
								HasMandatoryOutputs: mandatory,
								InputsMatchMetadata: match,
							}
							row, err := evaluateStatusTable(f)
							if err != nil {
								t.Fatalf("evaluateStatusTable(%+v) failed: %v", f, err)
							}
							want := expectedRow(f)
							if row.Phase != want {
								t.Errorf("facts %+v: got phase %s, want %s", f, row.Phase, want)
							}
						}
					}
				}
			}
		}
	}
}

// expectedRow is the decision table written as plain Go.
func expectedRow(f Facts) Phase {
	complete := f.InputsCollected == f.InputsMetaCount && f.HasTasks && f.HasMandatoryOutputs && f.InputsMatchMetadata
	switch {
	case complete && f.HasIOMapping:
		return PhaseCompleted
	case complete:
		return PhaseInputsCollected
	case f.HasTasks && f.InputsCollected > 0:
		return PhaseCollectingInputs
	case f.HasTasks:
		return PhaseTasksSelected
	default:
		return PhaseInitialized
	}
}

// TestProgressMonotonic verifies that supplying one more input never lowers
// progress while tasks and mappings stay fixed
func TestProgressMonotonic(t *testing.T) {
	a := NewAnalyzer("")
	meta := []InputMeta{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}}
	inputs := map[string]any{"A": "", "B": "<<B>>", "C": nil, "D": ""}
	spec := RuleSpec{
		Tasks:       []TaskRef{fetchTask()},
		Inputs:      inputs,
		InputsMeta:  meta,
		OutputsMeta: mandatoryOutputs(),
	}

	prev := -1
	for _, name := range []string{"A", "B", "C", "D"} {
		inputs[name] = "value-" + name
		got, err := a.Analyze(&spec)
		if err != nil {
			t.Fatalf("Analyze() failed: %v", err)
		}
		if got.ProgressPercentage < prev {
			t.Errorf("progress dropped from %d to %d after collecting %s", prev, got.ProgressPercentage, name)
		}
		prev = got.ProgressPercentage
	}
	if prev != 85 {
		t.Errorf("expected 85 once everything is collected, got %d", prev)
	}
}

func TestMissingComponents(t *testing.T) {
	a := NewAnalyzer("")

	got, err := a.Analyze(&RuleSpec{})
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	want := []string{ComponentTaskSelection, ComponentIOMapping, ComponentMandatoryOutputs}
	if !reflect.DeepEqual(got.MissingComponents, want) {
		t.Errorf("MissingComponents = %v, want %v", got.MissingComponents, want)
	}

	got, err = a.Analyze(&RuleSpec{
		Tasks:      []TaskRef{fetchTask()},
		Inputs:     map[string]any{"File": "x"},
		InputsMeta: fetchInputsMeta(),
	})
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	want = []string{ComponentInputCollection, ComponentIOMapping, ComponentMandatoryOutputs}
	if !reflect.DeepEqual(got.MissingComponents, want) {
		t.Errorf("MissingComponents = %v, want %v", got.MissingComponents, want)
	}
	if got.IsComplete() {
		t.Error("IsComplete() should be false")
	}
}

func TestIsCollected(t *testing.T) {
	a := NewAnalyzer("")

	cases := map[string]struct {
		v    any
		want bool
	}{
		"nil":         {nil, false},
		"empty":       {"", false},
		"placeholder": {"<<VALUE>>", false},
		"value":       {"eu-west-1", true},
		"zero int":    {0.0, true},
		"false bool":  {false, true},
	}
	for name, c := range cases {
		if got := a.IsCollected(c.v); got != c.want {
			t.Errorf("%s: IsCollected(%v) = %v, want %v", name, c.v, got, c.want)
		}
	}
}

// TestPlaceholderPrefixUndercount pins the known edge case: a real value that
// starts with the placeholder prefix is counted as not collected. A custom
// prefix avoids it.
func TestPlaceholderPrefixUndercount(t *testing.T) {
	value := "<<MINIO_FILE_PATH>>/users.json"

	if NewAnalyzer("").IsCollected(value) {
		t.Error("default prefix should treat the value as a placeholder")
	}
	if !NewAnalyzer("{{").IsCollected(value) {
		t.Error("custom prefix should treat the value as collected")
	}
	if NewAnalyzer("{{").IsCollected("{{TODO}}") {
		t.Error("custom prefix should treat {{TODO}} as a placeholder")
	}
}

func TestNextAction(t *testing.T) {
	cases := []struct {
		analysis Analysis
		want     string
	}{
		{Analysis{Phase: PhaseCompleted}, "Rule is complete. Review the YAML preview and publish the rule."},
		{Analysis{Phase: PhaseInitialized, MissingComponents: []string{ComponentTaskSelection}}, "Select the catalog tasks that make up the rule."},
		{Analysis{
			Phase:             PhaseCollectingInputs,
			MissingComponents: []string{ComponentInputCollection},
			Facts:             Facts{InputsMetaCount: 3, InputsCollected: 1},
		}, "Collect the remaining 2 input value(s)."},
		{Analysis{Phase: PhaseCollectingInputs, MissingComponents: []string{ComponentMandatoryOutputs}},
			"Add the mandatory outputs CompliancePCT_, ComplianceStatus_ and LogFile."},
	}
	for _, c := range cases {
		if got := NextAction(c.analysis); got != c.want {
			t.Errorf("NextAction(%s) = %q, want %q", c.analysis.Phase, got, c.want)
		}
	}
}
