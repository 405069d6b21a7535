package domain

// Principal is the resolved identity of the acting caller.
type Principal struct {
	UserID     string
	Role       Role
	Department string
}

// Owns reports whether the principal filed the ticket.
func (p Principal) Owns(t *Ticket) bool {
	return t != nil && t.CreatedBy == p.UserID
}

// CanRead applies the role scope: students see their own tickets, staff also see
// their department's, support roles see everything.
func (p Principal) CanRead(t *Ticket) bool {
	if t == nil {
		return false
	}
	switch {
	case p.Role.IsSupport():
		return true
	case p.Owns(t):
		return true
	case p.Role == RoleStaff && p.Department != "" && p.Department == t.Department:
		return true
	}
	return false
}
