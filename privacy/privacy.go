package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/strata/commit"
)

// Policy decision sentinel errors.
//
// These errors are used as return values from rules to indicate how the
// policy evaluation should proceed. Use errors.Is() to check for these
// values:
//
//	if errors.Is(err, privacy.Allow) { ... }
//	if errors.Is(err, privacy.Deny) { ... }
//	if errors.Is(err, privacy.Skip) { ... }
var (
	// Allow may be returned by rules to indicate that the evaluation of
	// the change should terminate with an allow decision.
	Allow = errors.New("strata/privacy: allow rule")

	// Deny may be returned by rules to indicate that the evaluation should
	// terminate with a deny decision. The commit is rejected.
	Deny = errors.New("strata/privacy: deny rule")

	// Skip may be returned by rules to indicate that the evaluation should
	// continue to the next rule in the chain.
	Skip = errors.New("strata/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Rule decides whether one object change may be committed.
type Rule interface {
	EvalChange(context.Context, commit.ObjectChange) error
}

// RuleFunc type is an adapter which allows the use of ordinary functions as
// rules.
type RuleFunc func(context.Context, commit.ObjectChange) error

// EvalChange returns f(ctx, c).
func (f RuleFunc) EvalChange(ctx context.Context, c commit.ObjectChange) error {
	return f(ctx, c)
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a context evaluation function. The
// function should return Allow, Deny, Skip, or nil. Returning nil is
// equivalent to returning Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ commit.ObjectChange) error {
		return eval(ctx)
	})
}

// OnChangeType evaluates the given rule only on changes of the given type.
func OnChangeType(rule Rule, t commit.ChangeType) Rule {
	return RuleFunc(func(ctx context.Context, c commit.ObjectChange) error {
		if c.Type == t {
			return rule.EvalChange(ctx, c)
		}
		return Skip
	})
}

// OnEntity evaluates the given rule only on changes of the named entities.
func OnEntity(rule Rule, entities ...string) Rule {
	return RuleFunc(func(ctx context.Context, c commit.ObjectChange) error {
		if slices.Contains(entities, c.ID.Entity) {
			return rule.EvalChange(ctx, c)
		}
		return Skip
	})
}

// DenyChangeTypeRule returns a rule denying changes of the given type.
func DenyChangeTypeRule(t commit.ChangeType) Rule {
	rule := RuleFunc(func(_ context.Context, c commit.ObjectChange) error {
		return Denyf("strata/privacy: %s of %s is not allowed", c.Type, c.ID.Entity)
	})
	return OnChangeType(rule, t)
}

// AllowChangeTypeRule returns a rule allowing changes of the given type.
func AllowChangeTypeRule(t commit.ChangeType) Rule {
	return OnChangeType(fixedDecision{Allow}, t)
}

// Policy is an ordered list of rules. Each change is evaluated until a rule
// returns a decision other than Skip. A change no rule decides is allowed.
type Policy []Rule

var _ commit.Policy = Policy(nil)

// EvalChange evaluates the rules against one change. It returns nil for an
// allowed change and the deciding error otherwise.
func (p Policy) EvalChange(ctx context.Context, c commit.ObjectChange) error {
	for _, rule := range p {
		switch decision := rule.EvalChange(ctx, c); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// EvalCommit evaluates every change of a commit. A decision attached to the
// context with DecisionContext overrides the rules.
func (p Policy) EvalCommit(ctx context.Context, changes []commit.ObjectChange) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, c := range changes {
		if err := p.EvalChange(ctx, c); err != nil {
			return &DeniedError{Change: c, Err: err}
		}
	}
	return nil
}

// Policies combines the policies of several entities or concerns. A change
// must pass every policy.
type Policies []commit.Policy

var _ commit.Policy = Policies(nil)

// EvalCommit evaluates the policies in order, stopping at the first error.
func (policies Policies) EvalCommit(ctx context.Context, changes []commit.ObjectChange) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, p := range policies {
		if err := p.EvalCommit(ctx, changes); err != nil {
			return err
		}
	}
	return nil
}

// DeniedError is returned when a rule rejects a change.
type DeniedError struct {
	Change commit.ObjectChange
	Err    error
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("strata/privacy: %s of %s denied: %v", e.Change.Type, e.Change.ID, e.Err)
}

func (e *DeniedError) Unwrap() error { return e.Err }

// IsDenied reports whether err is a policy rejection.
func IsDenied(err error) bool {
	var e *DeniedError
	return errors.As(err, &e) || errors.Is(err, Deny)
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it. Skip and nil leave the parent as is.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context. An
// Allow decision is returned as nil.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalChange(context.Context, commit.ObjectChange) error {
	return f.decision
}
