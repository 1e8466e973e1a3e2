package policy

import (
	"fmt"

	"github.com/bdubs00/pscale-context-server/internal/catalog"
	"github.com/bdubs00/pscale-context-server/internal/config"
)

// Engine evaluates function calls against the configured access policy.
type Engine struct {
	policy config.Policy
}

// Decision is the outcome of evaluating one call.
type Decision struct {
	Allow       bool
	MatchedRule int // -1 when the default applied
	Reason      string
}

// NewEngine creates a policy engine. A nil policy allows every call.
func NewEngine(p *config.Policy) *Engine {
	if p == nil {
		return &Engine{policy: config.Policy{Default: "allow"}}
	}
	return &Engine{policy: *p}
}

// Evaluate checks whether a call to function with the given arguments is
// allowed. Rules are evaluated top-down; first match wins.
func (e *Engine) Evaluate(function string, arguments catalog.Arguments) Decision {
	for i, rule := range e.policy.Rules {
		if rule.Function != function {
			continue
		}
		if matchWhen(rule.When, arguments) {
			reason := fmt.Sprintf("matched rule %d", i)
			if !rule.Allow {
				reason = fmt.Sprintf("denied by rule %d", i)
			}
			return Decision{
				Allow:       rule.Allow,
				MatchedRule: i,
				Reason:      reason,
			}
		}
	}

	return Decision{
		Allow:       e.policy.Default == "allow",
		MatchedRule: -1,
		Reason:      "no matching rule, using default: " + e.policy.Default,
	}
}

// Advertised filters ops down to what the capability announcement should
// list. Under a deny default only operations with an allow rule remain.
func (e *Engine) Advertised(ops []catalog.Operation) []catalog.Operation {
	if e.policy.Default == "allow" {
		return ops
	}
	allowed := map[string]bool{}
	for _, rule := range e.policy.Rules {
		if rule.Allow {
			allowed[rule.Function] = true
		}
	}
	var out []catalog.Operation
	for _, op := range ops {
		if allowed[op.Name] {
			out = append(out, op)
		}
	}
	return out
}

// matchWhen checks if all 'when' clauses match the given arguments.
// Each clause is a glob pattern matched against the argument value.
func matchWhen(when map[string]string, arguments catalog.Arguments) bool {
	for key, pattern := range when {
		val, ok := arguments[key]
		if !ok {
			return false
		}
		if !GlobMatch(pattern, val) {
			return false
		}
	}
	return true
}
