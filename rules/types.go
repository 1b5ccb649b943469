package rules

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a rule definition.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusReadyForCreation Status = "READY_FOR_CREATION"
	StatusActive           Status = "ACTIVE"
)

// Valid reports whether s is one of the three lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusReadyForCreation, StatusActive:
		return true
	}
	return false
}

// Phase is the build stage derived from the rule's structure.
type Phase string

const (
	PhaseInitialized      Phase = "initialized"
	PhaseTasksSelected    Phase = "tasks_selected"
	PhaseCollectingInputs Phase = "collecting_inputs"
	PhaseInputsCollected  Phase = "inputs_collected"
	PhaseCompleted        Phase = "completed"
)

const (
	DefaultAPIVersion = "rule.policycow.live/v1alpha1"
	DefaultKind       = "rule"
	DefaultTaskType   = "task"
)

// Outputs every rule must declare before it can become ACTIVE.
var MandatoryOutputs = []OutputMeta{
	{Name: "CompliancePCT_", DataType: "FLOAT", Required: true},
	{Name: "ComplianceStatus_", DataType: "STRING", Required: true},
	{Name: "LogFile", DataType: "FILE", Required: true},
}

// RuleDefinition is a declarative compliance rule, complete or in progress.
// Top-level fields this package does not model are kept in Extras and
// written back unchanged.
type RuleDefinition struct {
	APIVersion string         `json:"apiVersion" yaml:"apiVersion"`
	Kind       string         `json:"kind" yaml:"kind"`
	Meta       RuleMeta       `json:"meta" yaml:"meta"`
	Spec       RuleSpec       `json:"spec" yaml:"spec"`
	Extras     map[string]any `json:"-" yaml:",inline"`
}

// RuleMeta holds identity, descriptive and derived lifecycle fields.
type RuleMeta struct {
	Name                 string              `json:"name" yaml:"name"`
	ID                   string              `json:"id,omitempty" yaml:"id,omitempty"`
	Purpose              string              `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Description          string              `json:"description,omitempty" yaml:"description,omitempty"`
	Labels               map[string][]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Annotations          map[string][]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Status               Status              `json:"status,omitempty" yaml:"status,omitempty"`
	StatusOverridden     bool                `json:"statusOverridden,omitempty" yaml:"statusOverridden,omitempty"`
	Phase                Phase               `json:"phase,omitempty" yaml:"phase,omitempty"`
	ProgressPercentage   int                 `json:"progressPercentage" yaml:"progressPercentage"`
	ApplicationClassName string              `json:"applicationClassName,omitempty" yaml:"applicationClassName,omitempty"`
	Tags                 []string            `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt            *time.Time          `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	LastUpdatedAt        *time.Time          `json:"lastUpdatedAt,omitempty" yaml:"lastUpdatedAt,omitempty"`
}

// RuleSpec is the pipeline: tasks, collected inputs, declared I/O and the
// data-flow mappings between them.
type RuleSpec struct {
	Tasks       []TaskRef      `json:"tasks" yaml:"tasks"`
	Inputs      map[string]any `json:"inputs" yaml:"inputs"`
	InputsMeta  []InputMeta    `json:"inputsMeta" yaml:"inputsMeta"`
	OutputsMeta []OutputMeta   `json:"outputsMeta" yaml:"outputsMeta"`
	IOMap       []string       `json:"ioMap" yaml:"ioMap"`
}

// TaskRef binds a catalog task into the rule under a rule-local alias.
type TaskRef struct {
	Name    string              `json:"name" yaml:"name"`
	Alias   string              `json:"alias" yaml:"alias"`
	Type    string              `json:"type,omitempty" yaml:"type,omitempty"`
	AppTags map[string][]string `json:"appTags,omitempty" yaml:"appTags,omitempty"`
	Purpose string              `json:"purpose,omitempty" yaml:"purpose,omitempty"`
}

// InputMeta declares a rule input.
type InputMeta struct {
	Name          string   `json:"name" yaml:"name"`
	DataType      string   `json:"dataType" yaml:"dataType"`
	Required      bool     `json:"required" yaml:"required"`
	DefaultValue  any      `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Format        string   `json:"format,omitempty" yaml:"format,omitempty"`
	Repeated      bool     `json:"repeated,omitempty" yaml:"repeated,omitempty"`
	AllowedValues []string `json:"allowedValues,omitempty" yaml:"allowedValues,omitempty"`
}

// OutputMeta declares a rule output.
type OutputMeta struct {
	Name         string `json:"name" yaml:"name"`
	DataType     string `json:"dataType" yaml:"dataType"`
	Required     bool   `json:"required" yaml:"required"`
	DefaultValue any    `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

var knownTopLevel = map[string]bool{"apiVersion": true, "kind": true, "meta": true, "spec": true}

// MarshalJSON writes the modelled fields followed by Extras.
func (r RuleDefinition) MarshalJSON() ([]byte, error) {
	type plain RuleDefinition
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extras) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extras {
		if knownTopLevel[k] {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("extra field %q: %w", k, err)
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the modelled fields and keeps anything else in Extras.
func (r *RuleDefinition) UnmarshalJSON(data []byte) error {
	type plain RuleDefinition
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, raw := range all {
		if knownTopLevel[k] {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("extra field %q: %w", k, err)
		}
		if p.Extras == nil {
			p.Extras = make(map[string]any)
		}
		p.Extras[k] = v
	}
	*r = RuleDefinition(p)
	return nil
}

// UnmarshalJSON accepts the legacy `inputsMeta__` / `outputsMeta__` keys
// alongside the current ones.
func (s *RuleSpec) UnmarshalJSON(data []byte) error {
	type plain RuleSpec
	var aux struct {
		plain
		LegacyInputsMeta  []InputMeta  `json:"inputsMeta__"`
		LegacyOutputsMeta []OutputMeta `json:"outputsMeta__"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.InputsMeta == nil {
		aux.InputsMeta = aux.LegacyInputsMeta
	}
	if aux.OutputsMeta == nil {
		aux.OutputsMeta = aux.LegacyOutputsMeta
	}
	*s = RuleSpec(aux.plain)
	return nil
}

// Clone returns a deep copy via the JSON representation, which is the
// representation every store persists.
func (r *RuleDefinition) Clone() (*RuleDefinition, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to copy rule %s: %w", r.Meta.Name, err)
	}
	var out RuleDefinition
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to copy rule %s: %w", r.Meta.Name, err)
	}
	return &out, nil
}
