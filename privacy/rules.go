package privacy

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/strata/commit"
)

// Viewer represents the authenticated user committing a unit of work.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier, empty if not
	// applicable.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context, nil if none.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string { return v.UserID }

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string { return v.Roles }

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer returns a rule that denies every change if no viewer is
// present in the context. It is typically the first rule of a policy.
//
//	privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	}
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("strata/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows the change if the viewer has the
// specified role, and skips otherwise.
func HasRole(role string) Rule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows the change if the viewer has any of
// the specified roles, and skips otherwise.
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner returns a rule that allows the change if the given property of
// the object holds the viewer's ID. The new value is checked first, then
// the committed one. Changes that do not carry the property are skipped.
//
//	privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.OnEntity(privacy.IsOwner("ownerId"), "Painting"),
//	    privacy.AlwaysDenyRule(),
//	}
func IsOwner(property string) Rule {
	return RuleFunc(func(ctx context.Context, c commit.ObjectChange) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		value, ok := propertyValue(c, property)
		if !ok {
			return Skip
		}
		if stringValue(value) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// TenantRule returns a rule that allows the change if the given property
// matches the viewer's tenant and denies it on a mismatch. Viewers without
// a tenant and changes without the property are skipped.
func TenantRule(property string) Rule {
	return RuleFunc(func(ctx context.Context, c commit.ObjectChange) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		value, ok := propertyValue(c, property)
		if !ok {
			return Skip
		}
		if stringValue(value) == viewer.GetTenantID() {
			return Allow
		}
		return Denyf("strata/privacy: tenant mismatch")
	})
}

// ReadOnlyProperty returns a rule denying updates that change the given
// property of an existing object. Inserts may set it.
func ReadOnlyProperty(property string) Rule {
	return OnChangeType(RuleFunc(func(_ context.Context, c commit.ObjectChange) error {
		if _, ok := c.After[property]; ok {
			return Denyf("strata/privacy: %s.%s is read-only", c.ID.Entity, property)
		}
		return Skip
	}), commit.Update)
}

func propertyValue(c commit.ObjectChange, property string) (any, bool) {
	if v, ok := c.After[property]; ok && v != nil {
		return v, true
	}
	if v, ok := c.Before[property]; ok && v != nil {
		return v, true
	}
	return nil, false
}

func stringValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
