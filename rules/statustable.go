package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// statusRow is one row of the status decision table. Rows are evaluated in
// order and the first whose condition holds decides status and phase.
type statusRow struct {
	Status    Status
	Phase     Phase
	Condition string
}

var statusTable = []statusRow{
	{
		Status:    StatusActive,
		Phase:     PhaseCompleted,
		Condition: "hasIoMapping && inputsCollected == inputsMetaCount && hasTasks && hasMandatoryOutputs && inputsMatchMetadata",
	},
	{
		Status:    StatusReadyForCreation,
		Phase:     PhaseInputsCollected,
		Condition: "inputsCollected == inputsMetaCount && hasTasks && hasMandatoryOutputs && inputsMatchMetadata",
	},
	{
		Status:    StatusDraft,
		Phase:     PhaseCollectingInputs,
		Condition: "hasTasks && inputsCollected > 0",
	},
	{
		Status:    StatusDraft,
		Phase:     PhaseTasksSelected,
		Condition: "hasTasks",
	},
	{
		Status:    StatusDraft,
		Phase:     PhaseInitialized,
		Condition: "true",
	},
}

type compiledRow struct {
	statusRow
	prog cel.Program
}

var (
	compiledTable     []compiledRow
	compiledTableErr  error
	compiledTableOnce sync.Once
)

// statusEnv declares the structural facts the table conditions may use.
func statusEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("hasTasks", cel.BoolType),
		cel.Variable("inputsMetaCount", cel.IntType),
		cel.Variable("inputsCollected", cel.IntType),
		cel.Variable("hasIoMapping", cel.BoolType),
		cel.Variable("hasMandatoryOutputs", cel.BoolType),
		cel.Variable("inputsMatchMetadata", cel.BoolType),
	)
}

// compileStatusTable compiles every row condition once. The programs are
// immutable and safe for concurrent evaluation.
func compileStatusTable() ([]compiledRow, error) {
	compiledTableOnce.Do(func() {
		env, err := statusEnv()
		if err != nil {
			compiledTableErr = fmt.Errorf("failed to create CEL environment: %w", err)
			return
		}
		rows := make([]compiledRow, 0, len(statusTable))
		for _, row := range statusTable {
			ast, issues := env.Compile(row.Condition)
			if issues != nil && issues.Err() != nil {
				compiledTableErr = fmt.Errorf("compile error in %s/%s row: %w", row.Status, row.Phase, issues.Err())
				return
			}
			if !ast.OutputType().IsExactType(cel.BoolType) {
				compiledTableErr = fmt.Errorf("%s/%s row condition is %v, expected bool", row.Status, row.Phase, ast.OutputType())
				return
			}
			prog, err := env.Program(ast, cel.CostLimit(10000))
			if err != nil {
				compiledTableErr = fmt.Errorf("program creation error: %w", err)
				return
			}
			rows = append(rows, compiledRow{statusRow: row, prog: prog})
		}
		compiledTable = rows
	})
	return compiledTable, compiledTableErr
}

// evaluateStatusTable returns the first row matching the facts.
func evaluateStatusTable(f Facts) (statusRow, error) {
	rows, err := compileStatusTable()
	if err != nil {
		return statusRow{}, err
	}
	activation := f.activation()
	for _, row := range rows {
		out, _, err := row.prog.Eval(activation)
		if err != nil {
			return statusRow{}, fmt.Errorf("evaluating %s/%s row: %w", row.Status, row.Phase, err)
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return row.statusRow, nil
		}
	}
	// The last row is unconditional, so this is unreachable with a valid table.
	return statusRow{}, fmt.Errorf("no status row matched facts %+v", f)
}
