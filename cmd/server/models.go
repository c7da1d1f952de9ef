package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/liamcoop/workflowrules/rules"
)

// PutWorkflowRequest is the JSON body of PUT /api/v1/workflows/{name}
type PutWorkflowRequest struct {
	Rules []map[string]any `json:"rules" validate:"required,max=500"`
}

// RunWorkflowRequest is the body of POST /api/v1/workflows/{name}/run
type RunWorkflowRequest struct {
	Context map[string]any `json:"context" validate:"required"`
}

// WorkflowSummary is one entry of the workflow list
type WorkflowSummary struct {
	Name      string     `json:"name"`
	Rules     int        `json:"rules"`
	Stored    bool       `json:"stored"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// WorkflowsListResponse is the body of GET /api/v1/workflows
type WorkflowsListResponse struct {
	Workflows []WorkflowSummary `json:"workflows"`
}

// WorkflowResponse describes one workflow. Definition is the stored rule
// source and is absent for built-in workflows that were never stored.
type WorkflowResponse struct {
	Name       string          `json:"name"`
	RuleOrder  []string        `json:"rule_order"`
	Stored     bool            `json:"stored"`
	Definition json.RawMessage `json:"definition,omitempty"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
}

// RunWorkflowResponse is the body of a successful run
type RunWorkflowResponse struct {
	Workflow       string                  `json:"workflow"`
	Result         *rules.EvaluationResult `json:"result"`
	Context        map[string]any          `json:"context"`
	EvaluationTime string                  `json:"evaluationTime"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var errInvalidRequest = errors.New("invalid request")

// validateRequest runs struct validation and flattens the failures into
// one message
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", errInvalidRequest, strings.Join(msgs, "; "))
}

func ruleOrder(rs []*rules.Rule) []string {
	ordered := rules.NewEngine(rs, nil).Rules()
	ids := make([]string, len(ordered))
	for i, r := range ordered {
		ids[i] = r.ID
	}
	return ids
}
