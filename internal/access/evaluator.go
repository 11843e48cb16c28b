// Package access evaluates content visibility and interaction permissions.
// Every function is pure: the caller supplies the post or settings and a
// relationship snapshot, so decisions are deterministic and testable without
// a live store.
package access

import (
	"github.com/pulsegram/relation-service/internal/domain"
)

// Reason explains a denial. Allowed decisions carry no reason.
type Reason string

const (
	ReasonBlocked       Reason = "blocked"
	ReasonPrivate       Reason = "private"
	ReasonNotFollowing  Reason = "requires_follow"
	ReasonNotMutual     Reason = "requires_mutual"
	ReasonNotAllowed    Reason = "not_allowed"
	ReasonUnknownPolicy Reason = "unknown_policy"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(r Reason) Decision {
	return Decision{Allowed: false, Reason: r}
}

// CanViewPost decides whether viewerID may see the post. The relationship is
// viewed from the viewer's side: rel.IsBlockedBy means the author blocked the
// viewer, rel.IsBlocking means the viewer blocked the author. The owner
// always sees their own content, before any block or visibility check.
func CanViewPost(viewerID string, post domain.Post, rel domain.Relationship) Decision {
	if viewerID == post.AuthorID {
		return allow()
	}

	// A block in either direction wins over every visibility level,
	// including public.
	if rel.IsBlocking || rel.IsBlockedBy {
		return deny(ReasonBlocked)
	}

	switch post.Visibility {
	case domain.VisibilityPublic:
		return allow()
	case domain.VisibilityFollowers:
		if rel.IsFollowing {
			return allow()
		}
		return deny(ReasonNotFollowing)
	case domain.VisibilityMutual:
		if rel.IsMutual {
			return allow()
		}
		return deny(ReasonNotMutual)
	case domain.VisibilityPrivate:
		// Author-only; the owner case already returned above.
		return deny(ReasonPrivate)
	}
	return deny(ReasonUnknownPolicy)
}

// CanInteract decides whether viewerID may perform the interaction against
// targetID's content, given the target's privacy settings.
func CanInteract(viewerID, targetID string, interaction domain.InteractionType, settings domain.PrivacySettings, rel domain.Relationship) Decision {
	if viewerID == targetID {
		return allow()
	}

	if rel.IsBlocking || rel.IsBlockedBy {
		return deny(ReasonBlocked)
	}

	switch settings.InteractionLevel(interaction) {
	case domain.PermissionEveryone:
		return allow()
	case domain.PermissionFollowers:
		if rel.IsFollowing {
			return allow()
		}
		return deny(ReasonNotFollowing)
	case domain.PermissionMutual:
		if rel.IsMutual {
			return allow()
		}
		return deny(ReasonNotMutual)
	case domain.PermissionNone:
		return deny(ReasonNotAllowed)
	}
	return deny(ReasonUnknownPolicy)
}
