package models

// AdminGroup is the identity-provider group that grants admin rights.
const AdminGroup = "Admins"

// UserInfo is the identity extracted from a verified bearer token.
type UserInfo struct {
	UserID   string   `json:"userId"`
	Email    string   `json:"email,omitempty"`
	Nickname string   `json:"nickname,omitempty"`
	Groups   []string `json:"groups,omitempty"`
}

// IsAdmin reports whether the user belongs to the admin group.
func (u *UserInfo) IsAdmin() bool {
	for _, g := range u.Groups {
		if g == AdminGroup {
			return true
		}
	}
	return false
}
