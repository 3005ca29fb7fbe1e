package domain

// Member represents a chat member (value object)
type Member struct {
	UserID string
	Name   string
}

// DisplayName returns the name, falling back to the user ID
func (m *Member) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.UserID
}
