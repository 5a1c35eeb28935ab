package models

import "time"

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

const (
	RoleStudent     = "student"
	RoleCoordinator = "coordinator"
	RoleAdmin       = "admin"
)

type User struct {
	ID        int32      `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Password  string     `json:"password,omitempty"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Program   string     `json:"program,omitempty"`
	Cohort    string     `json:"cohort,omitempty"`
	Status    UserStatus `json:"status"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func (u *User) IsValidStatus(status UserStatus) bool {
	return status == StatusActive || status == StatusInactive
}
