package rules

import (
	"fmt"
	"strings"
)

// DefaultPlaceholderPrefix marks an input value as not yet supplied, as in
// "<<MINIO_FILE_PATH>>". Real values that happen to start with the prefix are
// counted as uncollected.
const DefaultPlaceholderPrefix = "<<"

// Missing component names reported by the analyzer.
const (
	ComponentTaskSelection    = "task_selection"
	ComponentInputCollection  = "input_collection"
	ComponentIOMapping        = "io_mapping"
	ComponentMandatoryOutputs = "mandatory_outputs"
)

// Facts are the structural properties of a rule spec that decide its status.
type Facts struct {
	HasTasks            bool `json:"hasTasks"`
	InputsMetaCount     int  `json:"inputsMetaCount"`
	InputsCollected     int  `json:"inputsCollected"`
	HasIOMapping        bool `json:"hasIoMapping"`
	HasMandatoryOutputs bool `json:"hasMandatoryOutputs"`
	InputsMatchMetadata bool `json:"inputsMatchMetadata"`
}

func (f Facts) activation() map[string]any {
	return map[string]any{
		"hasTasks":            f.HasTasks,
		"inputsMetaCount":     int64(f.InputsMetaCount),
		"inputsCollected":     int64(f.InputsCollected),
		"hasIoMapping":        f.HasIOMapping,
		"hasMandatoryOutputs": f.HasMandatoryOutputs,
		"inputsMatchMetadata": f.InputsMatchMetadata,
	}
}

// Analysis is the derived completion state of a rule.
type Analysis struct {
	Status             Status   `json:"status"`
	Phase              Phase    `json:"phase"`
	ProgressPercentage int      `json:"progressPercentage"`
	MissingComponents  []string `json:"missingComponents"`
	Facts              Facts    `json:"facts"`
}

// IsComplete reports whether nothing is missing.
func (a Analysis) IsComplete() bool {
	return len(a.MissingComponents) == 0
}

// Analyzer derives status, phase and progress from a rule spec. The same
// analyzer serves the merge path and the read-only status path.
type Analyzer struct {
	PlaceholderPrefix string
}

// NewAnalyzer creates an analyzer. An empty prefix selects the default.
func NewAnalyzer(placeholderPrefix string) *Analyzer {
	if placeholderPrefix == "" {
		placeholderPrefix = DefaultPlaceholderPrefix
	}
	return &Analyzer{PlaceholderPrefix: placeholderPrefix}
}

// Facts extracts the structural facts from spec.
func (a *Analyzer) Facts(spec *RuleSpec) Facts {
	collected := 0
	for _, v := range spec.Inputs {
		if a.IsCollected(v) {
			collected++
		}
	}
	return Facts{
		HasTasks:            len(spec.Tasks) > 0,
		InputsMetaCount:     len(spec.InputsMeta),
		InputsCollected:     collected,
		HasIOMapping:        len(spec.IOMap) > 0,
		HasMandatoryOutputs: hasMandatoryOutputs(spec.OutputsMeta),
		InputsMatchMetadata: len(spec.Inputs) == len(spec.InputsMeta),
	}
}

// IsCollected reports whether an input value counts as supplied.
func (a *Analyzer) IsCollected(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		if val == "" {
			return false
		}
		prefix := a.PlaceholderPrefix
		if prefix == "" {
			prefix = DefaultPlaceholderPrefix
		}
		return !strings.HasPrefix(val, prefix)
	default:
		return true
	}
}

// Analyze runs the status table over spec.
func (a *Analyzer) Analyze(spec *RuleSpec) (Analysis, error) {
	facts := a.Facts(spec)
	row, err := evaluateStatusTable(facts)
	if err != nil {
		return Analysis{}, fmt.Errorf("status analysis failed: %w", err)
	}
	return Analysis{
		Status:             row.Status,
		Phase:              row.Phase,
		ProgressPercentage: progressFor(row.Phase, facts),
		MissingComponents:  missingComponents(facts),
		Facts:              facts,
	}, nil
}

func progressFor(phase Phase, f Facts) int {
	switch phase {
	case PhaseCompleted:
		return 100
	case PhaseInputsCollected:
		return 85
	case PhaseCollectingInputs:
		denom := f.InputsMetaCount
		if denom < 1 {
			denom = 1
		}
		return min(85, 25+(60*f.InputsCollected)/denom)
	case PhaseTasksSelected:
		return 25
	default:
		return 5
	}
}

func missingComponents(f Facts) []string {
	missing := []string{}
	if !f.HasTasks {
		missing = append(missing, ComponentTaskSelection)
	}
	if f.InputsCollected < f.InputsMetaCount || !f.InputsMatchMetadata {
		missing = append(missing, ComponentInputCollection)
	}
	if !f.HasIOMapping {
		missing = append(missing, ComponentIOMapping)
	}
	if !f.HasMandatoryOutputs {
		missing = append(missing, ComponentMandatoryOutputs)
	}
	return missing
}

func hasMandatoryOutputs(outputs []OutputMeta) bool {
	declared := make(map[string]bool, len(outputs))
	for _, o := range outputs {
		declared[o.Name] = true
	}
	for _, m := range MandatoryOutputs {
		if !declared[m.Name] {
			return false
		}
	}
	return true
}

// NextAction recommends what the caller should do next.
func NextAction(a Analysis) string {
	switch a.Phase {
	case PhaseCompleted:
		return "Rule is complete. Review the YAML preview and publish the rule."
	case PhaseInputsCollected:
		return "All inputs are collected. Define the I/O mappings between tasks to activate the rule."
	}
	if len(a.MissingComponents) == 0 {
		return "Review the rule."
	}
	switch a.MissingComponents[0] {
	case ComponentTaskSelection:
		return "Select the catalog tasks that make up the rule."
	case ComponentInputCollection:
		remaining := a.Facts.InputsMetaCount - a.Facts.InputsCollected
		if remaining > 0 {
			return fmt.Sprintf("Collect the remaining %d input value(s).", remaining)
		}
		return "Declare metadata for every collected input so inputs and inputsMeta match."
	case ComponentIOMapping:
		return "Define the I/O mappings between tasks."
	case ComponentMandatoryOutputs:
		return "Add the mandatory outputs CompliancePCT_, ComplianceStatus_ and LogFile."
	}
	return "Continue building the rule."
}
