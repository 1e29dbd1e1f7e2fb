package model

// Member is the slice of a guild member the workflows need: identity,
// role membership, and the position of the highest role for hierarchy
// comparisons.
type Member struct {
	ID       string
	Username string
	Bot      bool
	RoleIDs  []string
	TopRole  int
}

func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

func (m Member) Mention() string {
	return "<@" + m.ID + ">"
}
