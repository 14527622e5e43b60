package model

// User is a host platform user acting on Air Quality data.
// The zero ID denotes an anonymous user.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
}

// Anonymous is the user attached to unauthenticated requests.
var Anonymous = User{DisplayName: "AnonymousUser"}

// IsAnonymous reports whether the user is unauthenticated.
func (u User) IsAnonymous() bool {
	return u.ID == 0
}
