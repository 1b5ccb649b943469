package main

import (
	"github.com/liamcoop/rulebuilder/rules"
)

// API request and response models

// Response wraps every reply except the merge result, which already carries
// the same fields.
type Response struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Errors     any    `json:"errors"`
	Message    string `json:"message,omitempty"`
	NextAction string `json:"nextAction,omitempty"`
}

// ValidateInputRequest is the body of POST /api/v1/inputs/validate.
type ValidateInputRequest struct {
	TaskName  string `json:"taskName" example:"FetchUsers"`
	InputName string `json:"inputName" example:"File"`
	Value     string `json:"value" example:"{\"tenantId\": \"t1\"}"`
}

// PlanInputsRequest is the body of POST /api/v1/inputs/plan.
type PlanInputsRequest struct {
	Tasks []rules.TaskRef `json:"tasks"`
}

// FlattenInputsRequest is the body of POST /api/v1/inputs/flatten. Values
// are keyed by "{alias}.{input}".
type FlattenInputsRequest struct {
	Tasks  []rules.TaskRef `json:"tasks"`
	Values map[string]any  `json:"values"`
}

// RulesListResponse lists stored rule names.
type RulesListResponse struct {
	Names []string `json:"names"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status" example:"healthy"`
	Backend string `json:"backend" example:"postgres"`
	Error   string `json:"error,omitempty"`
}
