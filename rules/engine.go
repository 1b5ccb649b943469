package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/liamcoop/rulebuilder/catalog"
	"github.com/liamcoop/rulebuilder/content"
	"github.com/liamcoop/rulebuilder/internal/logger"
)

// DefaultProvenanceTag marks rules built through this engine.
const DefaultProvenanceTag = "MCP"

// EngineConfig holds the tunables of an Engine. Zero values select defaults.
type EngineConfig struct {
	PlaceholderPrefix string
	ProvenanceTag     string

	// Now and NewID are overridable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// Engine is the single write path for rule definitions. It holds no state
// of its own: every call reads the current rule from the store.
type Engine struct {
	store         RuleStore
	catalog       catalog.Catalog
	analyzer      *Analyzer
	provenanceTag string
	now           func() time.Time
	newID         func() string
}

// NewEngine creates an engine over a store and a catalog. It fails only if
// the status table cannot be compiled.
func NewEngine(store RuleStore, cat catalog.Catalog, cfg EngineConfig) (*Engine, error) {
	if _, err := compileStatusTable(); err != nil {
		return nil, fmt.Errorf("failed to compile status table: %w", err)
	}
	en := &Engine{
		store:         store,
		catalog:       cat,
		analyzer:      NewAnalyzer(cfg.PlaceholderPrefix),
		provenanceTag: cfg.ProvenanceTag,
		now:           cfg.Now,
		newID:         cfg.NewID,
	}
	if en.provenanceTag == "" {
		en.provenanceTag = DefaultProvenanceTag
	}
	if en.now == nil {
		en.now = time.Now
	}
	if en.newID == nil {
		en.newID = func() string { return uuid.New().String() }
	}
	return en, nil
}

// Analyzer returns the analyzer shared by the merge and status paths.
func (en *Engine) Analyzer() *Analyzer {
	return en.analyzer
}

// MergeResult is the outcome of MergeRule.
type MergeResult struct {
	Success     bool             `json:"success"`
	Created     bool             `json:"created"`
	Rule        *RuleDefinition  `json:"rule,omitempty"`
	Analysis    Analysis         `json:"analysis"`
	Errors      ValidationErrors `json:"errors"`
	Degraded    []DegradedResult `json:"degraded,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
	YAMLPreview string           `json:"yamlPreview,omitempty"`
	Message     string           `json:"message"`
	NextAction  string           `json:"nextAction"`
}

// MergeRule merges a full or partial rule into the stored rule of the same
// name and persists the result. Validation failures are returned in the
// result and nothing is written. A returned error is an UpstreamError from
// the catalog or the store, or an internal analysis failure.
func (en *Engine) MergeRule(ctx context.Context, partial *RuleDefinition) (*MergeResult, error) {
	if partial == nil || partial.Meta.Name == "" {
		errs := ValidationErrors{{Code: CodeMissingName, Message: "meta.name is required", Field: "meta.name"}}
		return &MergeResult{
			Errors:     errs,
			Message:    "Rule was not saved: meta.name is required.",
			NextAction: "Provide a rule name in meta.name and resubmit.",
		}, nil
	}
	delta, err := partial.Clone()
	if err != nil {
		return nil, err
	}
	name := delta.Meta.Name

	prev, err := en.store.GetByName(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, &UpstreamError{Op: "load rule " + name, Err: err}
	}
	merged := mergeDefinitions(prev, delta)
	cat := newMemoCatalog(en.catalog)

	verrs, err := ValidateReferences(ctx, cat, &merged.Spec)
	if err != nil {
		return nil, err
	}
	if len(verrs) > 0 {
		analysis, aerr := en.analyzer.Analyze(&merged.Spec)
		if aerr != nil {
			return nil, aerr
		}
		return &MergeResult{
			Analysis:   analysis,
			Errors:     verrs,
			Message:    fmt.Sprintf("Rule %s was not saved: %d validation error(s).", name, len(verrs)),
			NextAction: "Fix the reported errors and resubmit the rule.",
		}, nil
	}

	if err := en.fillTaskDefaults(ctx, cat, &merged.Spec); err != nil {
		return nil, err
	}

	analysis, err := en.analyzer.Analyze(&merged.Spec)
	if err != nil {
		return nil, err
	}

	res := &MergeResult{Created: prev == nil, Errors: ValidationErrors{}}

	status, overridden := resolveStatus(delta.Meta.Status, delta.Meta.StatusOverridden, analysis.Status)
	merged.Meta.Status = status
	merged.Meta.StatusOverridden = overridden
	merged.Meta.Phase = analysis.Phase
	merged.Meta.ProgressPercentage = analysis.ProgressPercentage
	if overridden {
		res.Warnings = append(res.Warnings, fmt.Sprintf("status %s was set explicitly; the derived status is %s", status, analysis.Status))
	}

	appType, err := primaryAppType(merged)
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
	}
	if appType != "" {
		applyAppType(&merged.Meta, appType)
		if d := en.resolveApplicationClass(ctx, cat, &merged.Meta, appType); d != nil {
			res.Degraded = append(res.Degraded, *d)
		}
	}

	now := en.now().UTC()
	if merged.Meta.ID == "" {
		merged.Meta.ID = en.newID()
	}
	if merged.Meta.CreatedAt == nil {
		merged.Meta.CreatedAt = &now
	}
	merged.Meta.LastUpdatedAt = &now
	merged.Meta.Tags = appendUnique(merged.Meta.Tags, en.provenanceTag)

	if err := en.store.PutByName(ctx, name, merged); err != nil {
		return nil, &UpstreamError{Op: "store rule " + name, Err: err}
	}

	preview, err := yaml.Marshal(merged)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("YAML preview unavailable: %v", err))
	}

	res.Success = true
	res.Rule = merged
	res.Analysis = analysis
	res.YAMLPreview = string(preview)
	res.NextAction = NextAction(analysis)
	verb := "updated"
	if res.Created {
		verb = "created"
	}
	res.Message = fmt.Sprintf("Rule %s %s: %s (%s, %d%%).", name, verb, status, analysis.Phase, analysis.ProgressPercentage)
	return res, nil
}

// fillTaskDefaults copies appTags from the catalog into task references that
// do not carry their own.
func (en *Engine) fillTaskDefaults(ctx context.Context, cat catalog.Catalog, spec *RuleSpec) error {
	for i := range spec.Tasks {
		t := &spec.Tasks[i]
		if t.AppTags != nil {
			continue
		}
		def, err := cat.ResolveTask(ctx, t.Name)
		if err != nil {
			return &UpstreamError{Op: "resolve task " + t.Name, Err: err}
		}
		if len(def.AppTags) > 0 {
			t.AppTags = make(map[string][]string, len(def.AppTags))
			for k, v := range def.AppTags {
				t.AppTags[k] = append([]string(nil), v...)
			}
		}
	}
	return nil
}

// resolveApplicationClass records the application class registered for the
// primary application type. A failed lookup leaves the field unset and is
// reported as degraded.
func (en *Engine) resolveApplicationClass(ctx context.Context, cat catalog.Catalog, m *RuleMeta, appType string) *DegradedResult {
	m.ApplicationClassName = ""
	apps, err := cat.ResolveApplicationsByType(ctx, appType)
	if err != nil {
		logger.Degraded("applicationClassName", "rule", m.Name, "appType", appType, "error", err)
		return &DegradedResult{Component: "applicationClassName", Reason: err.Error()}
	}
	for _, app := range apps {
		if app.ApplicationClassName != "" {
			m.ApplicationClassName = app.ApplicationClassName
			return nil
		}
	}
	return &DegradedResult{
		Component: "applicationClassName",
		Reason:    fmt.Sprintf("no application class registered for appType %s", appType),
	}
}

// GetRule returns the stored rule.
func (en *Engine) GetRule(ctx context.Context, name string) (*RuleDefinition, error) {
	rule, err := en.store.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, &UpstreamError{Op: "load rule " + name, Err: err}
	}
	return rule, nil
}

// StatusReport answers a read-only status query.
type StatusReport struct {
	Name               string   `json:"name"`
	Status             Status   `json:"status"`
	StatusOverridden   bool     `json:"statusOverridden,omitempty"`
	Phase              Phase    `json:"phase"`
	ProgressPercentage int      `json:"progressPercentage"`
	MissingComponents  []string `json:"missingComponents"`
	NextAction         string   `json:"nextAction"`
	Facts              Facts    `json:"facts"`
}

// CheckStatus recomputes the completion state of a stored rule without
// writing anything.
func (en *Engine) CheckStatus(ctx context.Context, name string) (*StatusReport, error) {
	rule, err := en.GetRule(ctx, name)
	if err != nil {
		return nil, err
	}
	analysis, err := en.analyzer.Analyze(&rule.Spec)
	if err != nil {
		return nil, err
	}
	status := analysis.Status
	if rule.Meta.StatusOverridden && rule.Meta.Status.Valid() {
		status = rule.Meta.Status
	}
	return &StatusReport{
		Name:               name,
		Status:             status,
		StatusOverridden:   rule.Meta.StatusOverridden,
		Phase:              analysis.Phase,
		ProgressPercentage: analysis.ProgressPercentage,
		MissingComponents:  analysis.MissingComponents,
		NextAction:         NextAction(analysis),
		Facts:              analysis.Facts,
	}, nil
}

// InputValidation is the outcome of ValidateInput.
type InputValidation struct {
	TaskName  string `json:"taskName"`
	InputName string `json:"inputName"`
	DataType  string `json:"dataType,omitempty"`
	*content.Result
}

// ValidateInput validates a proposed value for one input of a catalog task.
func (en *Engine) ValidateInput(ctx context.Context, taskName, inputName, raw string) (*InputValidation, error) {
	out := &InputValidation{TaskName: taskName, InputName: inputName}

	task, err := en.catalog.ResolveTask(ctx, taskName)
	if err != nil {
		if catalog.IsNotFound(err) {
			out.Result = &content.Result{Errors: []string{fmt.Sprintf("task %q does not exist in the catalog", taskName)}}
			return out, nil
		}
		return nil, &UpstreamError{Op: "resolve task " + taskName, Err: err}
	}
	in, ok := task.Input(inputName)
	if !ok {
		out.Result = &content.Result{Errors: []string{fmt.Sprintf("task %q has no input %q", taskName, inputName)}}
		return out, nil
	}

	out.DataType = in.DataType
	out.Result = content.Validate(content.Input{
		Name:          in.Name,
		DataType:      content.ParseDataType(in.DataType),
		Format:        content.ParseFormat(in.Format),
		Template:      in.TemplateFile,
		AllowedValues: in.AllowedValues,
	}, raw)
	return out, nil
}

// MappingValidation is the outcome of ValidateMapping.
type MappingValidation struct {
	Valid  bool             `json:"valid"`
	Errors ValidationErrors `json:"errors"`
}

// ValidateMapping checks aliases and I/O mappings of spec without storing
// anything.
func (en *Engine) ValidateMapping(ctx context.Context, spec *RuleSpec) (*MappingValidation, error) {
	errs, err := ValidateReferences(ctx, en.catalog, spec)
	if err != nil {
		return nil, err
	}
	if errs == nil {
		errs = ValidationErrors{}
	}
	return &MappingValidation{Valid: len(errs) == 0, Errors: errs}, nil
}

// PlanInputs builds the input collection plan for a task selection.
func (en *Engine) PlanInputs(ctx context.Context, tasks []TaskRef) (*InputPlan, ValidationErrors, error) {
	return PlanInputs(ctx, en.catalog, tasks)
}

// FlattenInputs resolves the selected tasks and flattens values collected
// by unique id into spec.inputs form. Placeholder values count as missing.
func (en *Engine) FlattenInputs(ctx context.Context, tasks []TaskRef, values map[string]any) (*FlattenedInputs, ValidationErrors, error) {
	defs, errs, err := resolveTaskDefs(ctx, en.catalog, tasks)
	if err != nil {
		return nil, nil, err
	}
	if len(errs) > 0 {
		return nil, errs, nil
	}
	out, errs := FlattenInputs(tasks, defs, values, en.analyzer.IsCollected)
	return out, errs, nil
}

// memoCatalog remembers task lookups for the duration of one call so a
// merge resolves each task once.
type memoCatalog struct {
	next  catalog.Catalog
	tasks map[string]*catalog.Task
	mu    sync.Mutex
}

func newMemoCatalog(next catalog.Catalog) *memoCatalog {
	return &memoCatalog{next: next, tasks: make(map[string]*catalog.Task)}
}

func (c *memoCatalog) ResolveTask(ctx context.Context, name string) (*catalog.Task, error) {
	c.mu.Lock()
	t, ok := c.tasks[name]
	c.mu.Unlock()
	if ok {
		return t, nil
	}
	t, err := c.next.ResolveTask(ctx, name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.tasks[name] = t
	c.mu.Unlock()
	return t, nil
}

func (c *memoCatalog) ResolveApplicationsByType(ctx context.Context, appType string) ([]catalog.Application, error) {
	return c.next.ResolveApplicationsByType(ctx, appType)
}
