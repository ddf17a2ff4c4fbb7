package entity

import "time"

type User struct {
	ID           uint64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}
