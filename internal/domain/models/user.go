package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Balance      int64     `json:"balance"`
	IsBanned     bool      `json:"is_banned"`
	BanReason    string    `json:"ban_reason"`
	AccessRights string    `json:"access_rights"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool {
	return u.AccessRights == RoleAdmin
}
