package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/liamcoop/rulebuilder/catalog"
	"github.com/liamcoop/rulebuilder/rules"
)

const CliName = "rulectl"

const (
	flagFile        = "file"
	flagCatalog     = "catalog"
	flagPlaceholder = "placeholder-prefix"
	flagOutput      = "output"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	catalogPath       string
	placeholderPrefix string
	output            string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           CliName,
		Short:         "rulectl builds and checks compliance rule definitions offline",
		Long:          "rulectl runs the rule engine against local rule and catalog files: status analysis, mapping and input validation, input planning, value flattening and merging.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&opts.catalogPath, flagCatalog, "catalog.yaml", "Path to the task catalog YAML file")
	root.PersistentFlags().StringVar(&opts.placeholderPrefix, flagPlaceholder, rules.DefaultPlaceholderPrefix, "Prefix that marks an input value as not yet collected")
	root.PersistentFlags().StringVarP(&opts.output, flagOutput, "o", "yaml", "Output format: yaml or json")

	root.AddCommand(
		newStatusCmd(opts),
		newValidateMappingCmd(opts),
		newValidateInputCmd(opts),
		newPlanCmd(opts),
		newFlattenCmd(opts),
		newMergeCmd(opts),
	)
	return root
}

func (o *globalOptions) loadCatalog() (*catalog.StaticCatalog, error) {
	return catalog.LoadStaticCatalog(o.catalogPath)
}

func (o *globalOptions) newEngine(store rules.RuleStore) (*rules.Engine, error) {
	cat, err := o.loadCatalog()
	if err != nil {
		return nil, err
	}
	return rules.NewEngine(store, cat, rules.EngineConfig{PlaceholderPrefix: o.placeholderPrefix})
}

// print writes v in the selected output format.
func (o *globalOptions) print(w io.Writer, v any) error {
	switch o.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q (use: yaml, json)", o.output)
	}
}

// readRule loads a rule definition from a JSON or YAML file.
func readRule(path string) (*rules.RuleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	var def rules.RuleDefinition
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &def)
	} else {
		err = yaml.Unmarshal(data, &def)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}
	return &def, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
