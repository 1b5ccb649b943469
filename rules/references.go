package rules

import (
	"context"
	"fmt"
	"regexp"

	"github.com/liamcoop/rulebuilder/catalog"
)

const maxAliasLength = 100

var aliasPattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_-]*$`)

// validateAlias validates a task alias
// Must be 1-100 characters and usable as a mapping place, so it cannot
// contain '.', ':' or '=' and cannot be the rule place "*".
func validateAlias(alias string) error {
	if len(alias) == 0 {
		return fmt.Errorf("alias cannot be empty")
	}
	if len(alias) > maxAliasLength {
		return fmt.Errorf("alias length %d exceeds maximum of %d characters", len(alias), maxAliasLength)
	}
	if alias == RulePlace {
		return fmt.Errorf("alias %q is reserved for the rule itself", alias)
	}
	if !aliasPattern.MatchString(alias) {
		return fmt.Errorf("alias %q must match pattern %s", alias, aliasPattern.String())
	}
	return nil
}

// ValidateAliases checks every task alias and reports duplicates. It returns
// the alias -> task name map of the valid ones.
func ValidateAliases(tasks []TaskRef) (map[string]string, ValidationErrors) {
	var errs ValidationErrors
	aliases := make(map[string]string, len(tasks))
	for i, t := range tasks {
		if t.Name == "" {
			errs = append(errs, ValidationError{
				Code:    CodeUnknownTask,
				Message: fmt.Sprintf("task at position %d has no name", i),
				Field:   fmt.Sprintf("spec.tasks[%d].name", i),
			})
		}
		if err := validateAlias(t.Alias); err != nil {
			errs = append(errs, ValidationError{
				Code:    CodeInvalidAlias,
				Message: fmt.Sprintf("invalid alias for task %q: %v", t.Name, err),
				Field:   fmt.Sprintf("spec.tasks[%d].alias", i),
			})
			continue
		}
		if prev, dup := aliases[t.Alias]; dup {
			errs = append(errs, ValidationError{
				Code:    CodeDuplicateAlias,
				Message: fmt.Sprintf("alias %q is used by both %q and %q", t.Alias, prev, t.Name),
				Field:   fmt.Sprintf("spec.tasks[%d].alias", i),
			})
			continue
		}
		aliases[t.Alias] = t.Name
	}
	return aliases, errs
}

// ValidateReferences checks task aliases and every I/O mapping in spec
// against the tasks it declares and the catalog definitions of those tasks.
// All problems are returned together. A non-nil error means the catalog could
// not be consulted and the result is incomplete.
func ValidateReferences(ctx context.Context, cat catalog.Catalog, spec *RuleSpec) (ValidationErrors, error) {
	aliases, errs := ValidateAliases(spec.Tasks)

	resolved := make(map[string]*catalog.Task)
	for _, name := range distinctTaskNames(spec.Tasks) {
		task, err := cat.ResolveTask(ctx, name)
		if err != nil {
			if catalog.IsNotFound(err) {
				errs = append(errs, ValidationError{
					Code:    CodeUnknownTask,
					Message: fmt.Sprintf("task %q does not exist in the catalog", name),
				})
				continue
			}
			return errs, &UpstreamError{Op: "resolve task " + name, Err: err}
		}
		resolved[name] = task
	}

	ruleInputs := declaredRuleInputs(spec)
	for _, expr := range spec.IOMap {
		m, err := ParseMapping(expr)
		if err != nil {
			errs = append(errs, ValidationError{Code: CodeInvalidMapping, Message: err.Error(), Mapping: expr})
			continue
		}
		for _, ep := range []Endpoint{m.Dest, m.Source} {
			errs = append(errs, checkEndpoint(ep, expr, aliases, resolved, ruleInputs)...)
		}
	}
	return errs, nil
}

func checkEndpoint(ep Endpoint, expr string, aliases map[string]string, resolved map[string]*catalog.Task, ruleInputs map[string]bool) ValidationErrors {
	if ep.IsRule() {
		if ep.Direction == DirectionInput && !ruleInputs[ep.Attr] {
			return ValidationErrors{{
				Code:    CodeUnknownRuleInput,
				Message: fmt.Sprintf("rule input %q is not declared in spec.inputs or spec.inputsMeta", ep.Attr),
				Mapping: expr,
			}}
		}
		return nil
	}

	taskName, ok := aliases[ep.Place]
	if !ok {
		return ValidationErrors{{
			Code:    CodeUnknownAlias,
			Message: fmt.Sprintf("unknown task alias %q", ep.Place),
			Mapping: expr,
		}}
	}
	task, ok := resolved[taskName]
	if !ok {
		// already reported as UNKNOWN_TASK
		return nil
	}
	switch ep.Direction {
	case DirectionOutput:
		if !task.HasOutput(ep.Attr) {
			return ValidationErrors{{
				Code:    CodeUnknownOutput,
				Message: fmt.Sprintf("task %q has no output %q", taskName, ep.Attr),
				Mapping: expr,
			}}
		}
	case DirectionInput:
		if _, ok := task.Input(ep.Attr); !ok {
			return ValidationErrors{{
				Code:    CodeUnknownInput,
				Message: fmt.Sprintf("task %q has no input %q", taskName, ep.Attr),
				Mapping: expr,
			}}
		}
	}
	return nil
}

func distinctTaskNames(tasks []TaskRef) []string {
	seen := make(map[string]bool, len(tasks))
	var names []string
	for _, t := range tasks {
		if t.Name == "" || seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		names = append(names, t.Name)
	}
	return names
}

func declaredRuleInputs(spec *RuleSpec) map[string]bool {
	declared := make(map[string]bool, len(spec.Inputs)+len(spec.InputsMeta))
	for k := range spec.Inputs {
		declared[k] = true
	}
	for _, m := range spec.InputsMeta {
		declared[m.Name] = true
	}
	return declared
}
