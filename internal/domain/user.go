package domain

import (
	"time"
)

type Role string

const (
	RoleStaff     Role = "员工"
	RoleScheduler Role = "排班员"
	RoleManager   Role = "经理"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}
