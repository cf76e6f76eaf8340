package inbox

import (
	"github.com/counselhub/inbox-sync/internal/model"
)

// Visibility is the per-role predicate selecting which messages an inbox
// module is permitted to see.
type Visibility struct {
	SelfID    string
	SelfRole  model.Role
	peerRoles map[model.Role]bool

	// placeholder is the role-generic peer name used when a thread carries
	// no resolvable peer identity. Never empty.
	placeholder string
}

// NewVisibility builds a predicate for an identity and its peer roles.
func NewVisibility(selfID string, selfRole model.Role, placeholder string, peers ...model.Role) Visibility {
	set := make(map[model.Role]bool, len(peers))
	for _, r := range peers {
		set[r] = true
	}
	return Visibility{
		SelfID:      selfID,
		SelfRole:    selfRole,
		peerRoles:   set,
		placeholder: placeholder,
	}
}

// VisibilityFor returns the predicate for one of the portal's inbox
// modules. Requester modules talk only to counselors; the counselor module
// talks to every requester variant.
func VisibilityFor(selfID string, role model.Role) Visibility {
	if role == model.RoleCounselor {
		return NewVisibility(selfID, role, "Contact", model.RequesterRoles...)
	}
	return NewVisibility(selfID, role, "Counselor", model.RoleCounselor)
}

// Visible reports whether a single message belongs in this inbox. A message
// failing both the author and recipient checks is dropped entirely, never
// shown with redacted fields.
func (v Visibility) Visible(m *model.Message) bool {
	if m.SenderKind == model.RoleSystem {
		return true
	}
	if m.AuthoredBy(v.SelfID) {
		return v.peerRoles[m.RecipientRole]
	}
	if v.peerRoles[m.SenderKind] {
		return m.RecipientID == v.SelfID
	}
	return false
}

// Apply returns the visible subset of msgs, preserving input order.
func (v Visibility) Apply(msgs []model.Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for i := range msgs {
		if v.Visible(&msgs[i]) {
			out = append(out, msgs[i])
		}
	}
	return out
}

// PrimaryPeerRole returns the role used for outbound messages when a thread
// has no peer-authored message to resolve one from.
func (v Visibility) PrimaryPeerRole() model.Role {
	if v.SelfRole == model.RoleCounselor {
		return model.RoleStudent
	}
	return model.RoleCounselor
}

// IsPeer reports whether role is one of this module's peer roles.
func (v Visibility) IsPeer(role model.Role) bool {
	return v.peerRoles[role]
}

// Placeholder returns the role-generic peer display name.
func (v Visibility) Placeholder() string {
	return v.placeholder
}
