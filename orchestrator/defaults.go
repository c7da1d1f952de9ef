package orchestrator

import (
	_ "embed"
	"fmt"

	"github.com/liamcoop/workflowrules/rules"
)

// DefaultWorkflow is the name the built-in workflow is registered under
const DefaultWorkflow = "default"

//go:embed default_workflow.yaml
var defaultWorkflowYAML []byte

// DefaultRules parses the built-in escalation workflow
func DefaultRules() ([]*rules.Rule, error) {
	rs, err := rules.ParseRulesYAML(defaultWorkflowYAML)
	if err != nil {
		return nil, fmt.Errorf("default workflow: %w", err)
	}
	return rs, nil
}

// RegisterDefaults registers the built-in workflow as DefaultWorkflow
func (o *Orchestrator) RegisterDefaults() error {
	rs, err := DefaultRules()
	if err != nil {
		return err
	}
	o.RegisterWorkflow(DefaultWorkflow, rs)
	return nil
}
