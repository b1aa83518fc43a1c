package models

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// User is read from the identity provider, never stored locally
type User struct {
	ID        string   `json:"id"`
	FullName  string   `json:"full_name"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	AvatarURL *string  `json:"avatar_url,omitempty"`
}

// IsStaff is true for roles that see full attempt detail
func (r UserRole) IsStaff() bool {
	return r == RoleTeacher || r == RoleAdmin
}

// DisplayName prefers the full name, then email, then id
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.FullName != "":
		return u.FullName
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}
