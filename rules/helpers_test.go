package rules

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/liamcoop/rulebuilder/catalog"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testCatalog() *catalog.StaticCatalog {
	return catalog.NewStaticCatalog([]catalog.Task{
		{
			Name: "FetchUsers",
			Inputs: []catalog.TaskInput{
				{Name: "File", DataType: "FILE", Format: "json", Required: true,
					TemplateFile: `{"tenantId": "", "region": ""}`},
				{Name: "Region", DataType: "STRING", Required: true},
			},
			Outputs: []catalog.TaskOutput{
				{Name: "Users", DataType: "FILE"},
				{Name: "LogFile", DataType: "FILE"},
			},
			AppTags: map[string][]string{"appType": {"azureappconnector"}, "environment": {"logical"}},
		},
		{
			Name: "EvaluateUsers",
			Inputs: []catalog.TaskInput{
				{Name: "File", DataType: "FILE", Format: "json", Required: true},
				{Name: "Threshold", DataType: "INT", Required: false, DefaultValue: "90"},
			},
			Outputs: []catalog.TaskOutput{
				{Name: "CompliancePCT_", DataType: "FLOAT"},
				{Name: "ComplianceStatus_", DataType: "STRING"},
				{Name: "LogFile", DataType: "FILE"},
			},
			AppTags: map[string][]string{"appType": {"nocredapp"}},
		},
		{
			Name:    "QueryGitHub",
			Inputs:  []catalog.TaskInput{{Name: "Repo", DataType: "STRING", Required: true}},
			Outputs: []catalog.TaskOutput{{Name: "Repos", DataType: "FILE"}},
			AppTags: map[string][]string{"appType": {"githubconnector"}},
		},
	}, []catalog.Application{
		{Name: "Azure", ApplicationClassName: "AzureAppConnector", AppType: "azureappconnector"},
	})
}

// funcCatalog lets a test replace individual catalog calls.
type funcCatalog struct {
	next        catalog.Catalog
	resolveTask func(ctx context.Context, name string) (*catalog.Task, error)
	resolveApps func(ctx context.Context, appType string) ([]catalog.Application, error)
	taskCalls   int
}

func (c *funcCatalog) ResolveTask(ctx context.Context, name string) (*catalog.Task, error) {
	c.taskCalls++
	if c.resolveTask != nil {
		return c.resolveTask(ctx, name)
	}
	return c.next.ResolveTask(ctx, name)
}

func (c *funcCatalog) ResolveApplicationsByType(ctx context.Context, appType string) ([]catalog.Application, error) {
	if c.resolveApps != nil {
		return c.resolveApps(ctx, appType)
	}
	return c.next.ResolveApplicationsByType(ctx, appType)
}

// funcStore lets a test fail individual store calls.
type funcStore struct {
	RuleStore
	getErr error
	putErr error
	puts   int
}

func (s *funcStore) GetByName(ctx context.Context, name string) (*RuleDefinition, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.RuleStore.GetByName(ctx, name)
}

func (s *funcStore) PutByName(ctx context.Context, name string, rule *RuleDefinition) error {
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	return s.RuleStore.PutByName(ctx, name, rule)
}

func newTestEngine(t *testing.T, store RuleStore, cat catalog.Catalog) *Engine {
	t.Helper()
	var n atomic.Int64
	en, err := NewEngine(store, cat, EngineConfig{
		Now: func() time.Time { return fixedNow },
		NewID: func() string {
			return fmt.Sprintf("rule-id-%d", n.Add(1))
		},
	})
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	return en
}

func mandatoryOutputs() []OutputMeta {
	return append([]OutputMeta(nil), MandatoryOutputs...)
}

func fetchTask() TaskRef {
	return TaskRef{Name: "FetchUsers", Alias: "fetch"}
}

func fetchInputsMeta() []InputMeta {
	return []InputMeta{
		{Name: "File", DataType: "FILE", Format: "json", Required: true},
		{Name: "Region", DataType: "STRING", Required: true},
	}
}

func hasCode(errs ValidationErrors, code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}
