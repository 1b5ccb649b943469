package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/liamcoop/rulebuilder/catalog"
	"github.com/liamcoop/rulebuilder/content"
)

// Minutes a caller is expected to spend supplying each kind of input.
const (
	templateInputMinutes  = 3.0
	parameterInputMinutes = 0.5
)

// PlannedInput is one task input addressed by its unique id and the key it
// is stored under in spec.inputs.
type PlannedInput struct {
	UniqueID      string   `json:"uniqueId"`
	StoredKey     string   `json:"storedKey"`
	TaskName      string   `json:"taskName"`
	TaskAlias     string   `json:"taskAlias"`
	InputName     string   `json:"inputName"`
	Description   string   `json:"description,omitempty"`
	DataType      string   `json:"dataType"`
	Format        string   `json:"format,omitempty"`
	Required      bool     `json:"required"`
	DefaultValue  string   `json:"defaultValue,omitempty"`
	HasTemplate   bool     `json:"hasTemplate"`
	AllowedValues []string `json:"allowedValues,omitempty"`
}

// IsTemplate reports whether the input takes file content.
func (p PlannedInput) IsTemplate() bool {
	return p.HasTemplate || content.ParseDataType(p.DataType).IsTemplate()
}

// InputPlan is the collection plan for a task selection.
type InputPlan struct {
	Inputs           []PlannedInput `json:"inputs"`
	TemplateInputs   []PlannedInput `json:"templateInputs"`
	ParameterInputs  []PlannedInput `json:"parameterInputs"`
	TemplateCount    int            `json:"templateCount"`
	ParameterCount   int            `json:"parameterCount"`
	TotalCount       int            `json:"totalCount"`
	EstimatedMinutes float64        `json:"estimatedMinutes"`
	InputsMeta       []InputMeta    `json:"inputsMeta"`
	IOMap            []string       `json:"ioMap"`
}

// ResolveInputNames assigns every input of the selected tasks a unique id
// "{alias}.{input}" and a stored key. The stored key is the bare input name
// unless an earlier input already claimed it, in which case it becomes
// "{alias}_{input}" (with a numeric suffix if even that is taken). Tasks are
// processed in order, then inputs in declaration order, so the result is the
// same on every run.
func ResolveInputNames(tasks []TaskRef, defs map[string]*catalog.Task) ([]PlannedInput, ValidationErrors) {
	if _, errs := ValidateAliases(tasks); len(errs) > 0 {
		return nil, errs
	}

	claimed := make(map[string]bool)
	var planned []PlannedInput
	for _, t := range tasks {
		def, ok := defs[t.Name]
		if !ok {
			continue
		}
		for _, in := range def.Inputs {
			key := in.Name
			if claimed[key] {
				key = t.Alias + "_" + in.Name
				for n := 2; claimed[key]; n++ {
					key = fmt.Sprintf("%s_%s_%d", t.Alias, in.Name, n)
				}
			}
			claimed[key] = true
			planned = append(planned, PlannedInput{
				UniqueID:      t.Alias + "." + in.Name,
				StoredKey:     key,
				TaskName:      t.Name,
				TaskAlias:     t.Alias,
				InputName:     in.Name,
				Description:   in.Description,
				DataType:      in.DataType,
				Format:        in.Format,
				Required:      in.Required,
				DefaultValue:  in.DefaultValue,
				HasTemplate:   in.TemplateFile != "",
				AllowedValues: in.AllowedValues,
			})
		}
	}
	return planned, nil
}

// PlanInputs resolves the selected tasks through the catalog and builds the
// input collection plan. Unknown tasks are reported as validation errors.
func PlanInputs(ctx context.Context, cat catalog.Catalog, tasks []TaskRef) (*InputPlan, ValidationErrors, error) {
	defs, errs, err := resolveTaskDefs(ctx, cat, tasks)
	if err != nil {
		return nil, nil, err
	}

	planned, aliasErrs := ResolveInputNames(tasks, defs)
	errs = append(errs, aliasErrs...)
	if len(errs) > 0 {
		return nil, errs, nil
	}

	plan := &InputPlan{
		Inputs:          planned,
		TemplateInputs:  []PlannedInput{},
		ParameterInputs: []PlannedInput{},
		InputsMeta:      []InputMeta{},
		IOMap:           []string{},
	}
	for _, p := range planned {
		if p.IsTemplate() {
			plan.TemplateInputs = append(plan.TemplateInputs, p)
			plan.EstimatedMinutes += templateInputMinutes
		} else {
			plan.ParameterInputs = append(plan.ParameterInputs, p)
			plan.EstimatedMinutes += parameterInputMinutes
		}
		plan.InputsMeta = append(plan.InputsMeta, p.inputMeta())
		plan.IOMap = append(plan.IOMap, p.mapping())
	}
	plan.TemplateCount = len(plan.TemplateInputs)
	plan.ParameterCount = len(plan.ParameterInputs)
	plan.TotalCount = len(planned)
	return plan, nil, nil
}

// inputMeta declares the planned input as a rule input under its stored key.
func (p PlannedInput) inputMeta() InputMeta {
	meta := InputMeta{
		Name:          p.StoredKey,
		DataType:      p.DataType,
		Required:      p.Required,
		AllowedValues: p.AllowedValues,
	}
	if p.DefaultValue != "" {
		meta.DefaultValue = p.DefaultValue
	}
	if content.ParseDataType(p.DataType).IsTemplate() {
		meta.Format = p.Format
	}
	return meta
}

// mapping wires the rule input into the task input it was planned for.
func (p PlannedInput) mapping() string {
	return Mapping{
		Dest:   Endpoint{Place: p.TaskAlias, Direction: DirectionInput, Attr: p.InputName},
		Source: Endpoint{Place: RulePlace, Direction: DirectionInput, Attr: p.StoredKey},
	}.String()
}

func resolveTaskDefs(ctx context.Context, cat catalog.Catalog, tasks []TaskRef) (map[string]*catalog.Task, ValidationErrors, error) {
	defs := make(map[string]*catalog.Task)
	var errs ValidationErrors
	for _, name := range distinctTaskNames(tasks) {
		def, err := cat.ResolveTask(ctx, name)
		if err != nil {
			if catalog.IsNotFound(err) {
				errs = append(errs, ValidationError{
					Code:    CodeUnknownTask,
					Message: fmt.Sprintf("task %q does not exist in the catalog", name),
				})
				continue
			}
			return nil, nil, &UpstreamError{Op: "resolve task " + name, Err: err}
		}
		defs[name] = def
	}
	return defs, errs, nil
}

// FlattenedInputs are collected values moved from their unique ids to the
// keys they are stored under in spec.inputs.
type FlattenedInputs struct {
	Inputs           map[string]any    `json:"inputs" yaml:"inputs"`
	InputsMeta       []InputMeta       `json:"inputsMeta" yaml:"inputsMeta"`
	IOMap            []string          `json:"ioMap" yaml:"ioMap"`
	StoredKeys       map[string]string `json:"storedKeys" yaml:"storedKeys"`
	Missing          []string          `json:"missing" yaml:"missing"`
	ReadyForCreation bool              `json:"readyForCreation" yaml:"readyForCreation"`
}

// FlattenInputs places values keyed by unique id ("{alias}.{input}") under
// the stored keys ResolveInputNames assigns and builds the matching
// inputsMeta and ioMap. A value that isCollected rejects is kept as given.
// Inputs without a value take the catalog default. Required inputs that end
// up without a collected value are listed in Missing by unique id. Ids that
// match no task input are validation errors. A nil isCollected treats nil
// and empty strings as not collected.
func FlattenInputs(tasks []TaskRef, defs map[string]*catalog.Task, values map[string]any, isCollected func(any) bool) (*FlattenedInputs, ValidationErrors) {
	if isCollected == nil {
		isCollected = NewAnalyzer("").IsCollected
	}
	planned, errs := ResolveInputNames(tasks, defs)
	if len(errs) > 0 {
		return nil, errs
	}

	out := &FlattenedInputs{
		Inputs:     make(map[string]any, len(planned)),
		InputsMeta: []InputMeta{},
		IOMap:      []string{},
		StoredKeys: make(map[string]string, len(planned)),
		Missing:    []string{},
	}
	for _, p := range planned {
		out.StoredKeys[p.UniqueID] = p.StoredKey
		meta := p.inputMeta()

		v, ok := values[p.UniqueID]
		if !ok && p.DefaultValue != "" {
			v, ok = p.DefaultValue, true
		}
		if ok {
			out.Inputs[p.StoredKey] = v
			if isCollected(v) {
				meta.DefaultValue = v
			}
		}
		if p.Required && !(ok && isCollected(v)) {
			out.Missing = append(out.Missing, p.UniqueID)
		}
		out.InputsMeta = append(out.InputsMeta, meta)
		out.IOMap = append(out.IOMap, p.mapping())
	}

	ids := make([]string, 0, len(values))
	for id := range values {
		if _, ok := out.StoredKeys[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		errs = append(errs, ValidationError{
			Code:    CodeUnknownInput,
			Message: fmt.Sprintf("%q does not name an input of the selected tasks (use alias.input)", id),
			Field:   id,
		})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	out.ReadyForCreation = len(out.Missing) == 0
	return out, nil
}
