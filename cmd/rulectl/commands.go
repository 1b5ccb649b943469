package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/liamcoop/rulebuilder/catalog"
	"github.com/liamcoop/rulebuilder/rules"
)

const (
	StatusCmdExample = `# Show the derived status of a rule file
rulectl status -f users-mfa.yaml`

	ValidateMappingCmdExample = `# Check aliases and ioMap entries against the catalog
rulectl validate-mapping -f users-mfa.yaml --catalog catalog.yaml`

	ValidateInputCmdExample = `# Validate a JSON file for the File input of FetchUsers
rulectl validate-input --task FetchUsers --input File --value-file tenant.json`

	PlanCmdExample = `# Plan the inputs for two tasks
rulectl plan --task FetchUsers:fetch --task EvaluateUsers:eval`

	FlattenCmdExample = `# Place collected values under their stored keys
rulectl flatten --task FetchUsers:fetch --task EvaluateUsers:eval --values collected.yaml`

	MergeCmdExample = `# Merge a partial rule into an existing one and print the result
rulectl merge --base users-mfa.yaml -f users-mfa-inputs.yaml`
)

// errInvalid is returned after the report has been printed, so main exits
// non-zero without repeating the details.
var errInvalid = errors.New("validation failed")

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show status, phase and progress of a rule",
		Example: StatusCmdExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := readRule(file)
			if err != nil {
				return err
			}
			if def.Meta.Name == "" {
				return errors.New("rule file has no meta.name")
			}
			// status needs no catalog
			store := rules.NewInMemoryRuleStore()
			engine, err := rules.NewEngine(store, catalog.NewStaticCatalog(nil, nil),
				rules.EngineConfig{PlaceholderPrefix: opts.placeholderPrefix})
			if err != nil {
				return err
			}
			if err := store.PutByName(cmd.Context(), def.Meta.Name, def); err != nil {
				return err
			}
			report, err := engine.CheckStatus(cmd.Context(), def.Meta.Name)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVarP(&file, flagFile, "f", "", "Path to the rule file")
	cmd.MarkFlagRequired(flagFile)
	return cmd
}

func newValidateMappingCmd(opts *globalOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:     "validate-mapping",
		Short:   "Validate task aliases and ioMap references",
		Example: ValidateMappingCmdExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := readRule(file)
			if err != nil {
				return err
			}
			engine, err := opts.newEngine(rules.NewInMemoryRuleStore())
			if err != nil {
				return err
			}
			res, err := engine.ValidateMapping(cmd.Context(), &def.Spec)
			if err != nil {
				return err
			}
			if err := opts.print(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("%w: %d mapping error(s)", errInvalid, len(res.Errors))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, flagFile, "f", "", "Path to the rule file")
	cmd.MarkFlagRequired(flagFile)
	return cmd
}

func newValidateInputCmd(opts *globalOptions) *cobra.Command {
	var taskName, inputName, value, valueFile string
	cmd := &cobra.Command{
		Use:     "validate-input",
		Short:   "Validate a value for one input of a catalog task",
		Example: ValidateInputCmdExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if valueFile != "" {
				data, err := os.ReadFile(valueFile)
				if err != nil {
					return fmt.Errorf("failed to read value file: %w", err)
				}
				value = string(data)
			}
			engine, err := opts.newEngine(rules.NewInMemoryRuleStore())
			if err != nil {
				return err
			}
			res, err := engine.ValidateInput(cmd.Context(), taskName, inputName, value)
			if err != nil {
				return err
			}
			if err := opts.print(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Valid {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&taskName, "task", "", "Catalog task name")
	cmd.Flags().StringVar(&inputName, "input", "", "Input name")
	cmd.Flags().StringVar(&value, "value", "", "Value to validate")
	cmd.Flags().StringVar(&valueFile, "value-file", "", "Read the value from a file")
	cmd.MarkFlagRequired("task")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagsMutuallyExclusive("value", "value-file")
	return cmd
}

// parseTaskRefs turns "Name:alias" (or "Name", aliased to itself) into task
// references.
func parseTaskRefs(specs []string) ([]rules.TaskRef, error) {
	refs := make([]rules.TaskRef, 0, len(specs))
	for _, s := range specs {
		name, alias, _ := strings.Cut(s, ":")
		if name == "" {
			return nil, fmt.Errorf("invalid task %q (use Name:alias)", s)
		}
		if alias == "" {
			alias = name
		}
		refs = append(refs, rules.TaskRef{Name: name, Alias: alias})
	}
	return refs, nil
}

func newPlanCmd(opts *globalOptions) *cobra.Command {
	var tasks []string
	cmd := &cobra.Command{
		Use:     "plan",
		Short:   "Plan input collection for a task selection",
		Example: PlanCmdExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := parseTaskRefs(tasks)
			if err != nil {
				return err
			}
			engine, err := opts.newEngine(rules.NewInMemoryRuleStore())
			if err != nil {
				return err
			}
			plan, verrs, err := engine.PlanInputs(cmd.Context(), refs)
			if err != nil {
				return err
			}
			if len(verrs) > 0 {
				return verrs
			}
			return opts.print(cmd.OutOrStdout(), plan)
		},
	}
	cmd.Flags().StringArrayVar(&tasks, "task", nil, "Task as Name:alias (repeatable, in pipeline order)")
	cmd.MarkFlagRequired("task")
	return cmd
}

func newFlattenCmd(opts *globalOptions) *cobra.Command {
	var tasks []string
	var valuesFile string
	cmd := &cobra.Command{
		Use:     "flatten",
		Short:   "Turn collected values keyed by alias.input into rule inputs",
		Example: FlattenCmdExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := parseTaskRefs(tasks)
			if err != nil {
				return err
			}
			values := map[string]any{}
			if valuesFile != "" {
				data, err := os.ReadFile(valuesFile)
				if err != nil {
					return fmt.Errorf("failed to read values file: %w", err)
				}
				if err := yaml.Unmarshal(data, &values); err != nil {
					return fmt.Errorf("failed to parse values file %s: %w", valuesFile, err)
				}
			}
			engine, err := opts.newEngine(rules.NewInMemoryRuleStore())
			if err != nil {
				return err
			}
			out, verrs, err := engine.FlattenInputs(cmd.Context(), refs, values)
			if err != nil {
				return err
			}
			if len(verrs) > 0 {
				return verrs
			}
			if err := opts.print(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !out.ReadyForCreation {
				return fmt.Errorf("%w: missing %s", errInvalid, strings.Join(out.Missing, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&tasks, "task", nil, "Task as Name:alias (repeatable, in pipeline order)")
	cmd.Flags().StringVar(&valuesFile, "values", "", "YAML or JSON file mapping alias.input to the collected value")
	cmd.MarkFlagRequired("task")
	return cmd
}

func newMergeCmd(opts *globalOptions) *cobra.Command {
	var file, base string
	cmd := &cobra.Command{
		Use:     "merge",
		Short:   "Merge a full or partial rule into a base rule",
		Example: MergeCmdExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := readRule(file)
			if err != nil {
				return err
			}
			store := rules.NewInMemoryRuleStore()
			if base != "" {
				prev, err := readRule(base)
				if err != nil {
					return err
				}
				if prev.Meta.Name != delta.Meta.Name {
					return fmt.Errorf("base rule %q and merged rule %q differ in meta.name", prev.Meta.Name, delta.Meta.Name)
				}
				if err := store.PutByName(cmd.Context(), prev.Meta.Name, prev); err != nil {
					return err
				}
			}
			engine, err := opts.newEngine(store)
			if err != nil {
				return err
			}
			res, err := engine.MergeRule(cmd.Context(), delta)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			for _, d := range res.Degraded {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s: %s\n", d.Component, d.Reason)
			}
			if !res.Success {
				if err := opts.print(cmd.OutOrStdout(), res.Errors); err != nil {
					return err
				}
				return fmt.Errorf("%w: %s", errInvalid, res.Message)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), res.Message)
			return opts.print(cmd.OutOrStdout(), res.Rule)
		},
	}
	cmd.Flags().StringVarP(&file, flagFile, "f", "", "Path to the rule to merge")
	cmd.Flags().StringVar(&base, "base", "", "Path to the existing rule to merge into")
	cmd.MarkFlagRequired(flagFile)
	return cmd
}
