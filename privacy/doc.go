// Package privacy provides commit policies: rules that decide, before any
// key is generated or statement executed, whether the object changes of a
// commit may be written.
//
// # Core Concepts
//
//   - Policy: an ordered list of rules, implementing commit.Policy
//   - Rule: a function of one commit.ObjectChange returning Allow, Deny or Skip
//   - Viewer: the user committing the unit of work, carried by the context
//
// # Rule Evaluation
//
// Every change of a commit is evaluated against the rules in order until one
// returns a final decision:
//
//   - Allow: accepts the change and moves to the next one
//   - Deny: rejects the whole commit with a DeniedError
//   - Skip: continues to the next rule
//
// A change that no rule decides is accepted, so restrictive policies end
// with AlwaysDenyRule.
//
//	c := commit.New(tr, nil, commit.WithPolicy(privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.OnEntity(privacy.IsOwner("ownerId"), "Painting"),
//	    privacy.DenyChangeTypeRule(commit.Delete),
//	    privacy.AlwaysDenyRule(),
//	}))
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "42"})
//	_, err := c.CommitTx(ctx, drv, tracker.Diffs())
//	if privacy.IsDenied(err) { ... }
//
// A decision attached with DecisionContext bypasses the rules, e.g. for
// system maintenance jobs:
//
//	ctx = privacy.DecisionContext(ctx, privacy.Allow)
package privacy
