package orchestrator

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/liamcoop/workflowrules/rules"
)

const (
	// MaxWorkflowNameLength bounds workflow names
	MaxWorkflowNameLength = 100
	// MaxRulesPerWorkflow bounds the number of rules in one workflow
	MaxRulesPerWorkflow = 500
)

// ErrInvalidWorkflow is wrapped by every validation failure
var ErrInvalidWorkflow = errors.New("invalid workflow")

var workflowNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*$`)

// ValidateWorkflowName checks that name is 1-100 characters, starts with
// a letter or underscore and continues with letters, digits, '_', '.' or '-'
func ValidateWorkflowName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidWorkflow)
	}
	if len(name) > MaxWorkflowNameLength {
		return fmt.Errorf("%w: name length %d exceeds maximum of %d characters", ErrInvalidWorkflow, len(name), MaxWorkflowNameLength)
	}
	if !workflowNamePattern.MatchString(name) {
		return fmt.Errorf("%w: name %q must match %s", ErrInvalidWorkflow, name, workflowNamePattern)
	}
	return nil
}

// ValidateRules rejects rule sets that parse but cannot be reported on:
// rules without an ID, duplicate IDs and oversized workflows
func ValidateRules(rs []*rules.Rule) error {
	if len(rs) > MaxRulesPerWorkflow {
		return fmt.Errorf("%w: %d rules, maximum allowed is %d", ErrInvalidWorkflow, len(rs), MaxRulesPerWorkflow)
	}

	seen := make(map[string]int, len(rs))
	for i, rule := range rs {
		if rule == nil {
			return fmt.Errorf("%w: rule %d is empty", ErrInvalidWorkflow, i)
		}
		if rule.ID == "" {
			return fmt.Errorf("%w: rule %d has no id", ErrInvalidWorkflow, i)
		}
		if prev, dup := seen[rule.ID]; dup {
			return fmt.Errorf("%w: rule id %q used by rules %d and %d", ErrInvalidWorkflow, rule.ID, prev, i)
		}
		seen[rule.ID] = i
	}
	return nil
}
