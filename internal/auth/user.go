// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"time"

	"github.com/taibuivan/studio/internal/platform/sec"
)

// # Entities

// User is a back-office account allowed to sign in.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         sec.Role
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity returns the subset of the account that is signed into tokens.
func (user *User) Identity() sec.Identity {
	return sec.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}
}

// Profile is the client-facing view of a [User]. It never carries the password hash.
type Profile struct {
	ID          int64            `json:"id"`
	Username    string           `json:"username"`
	Email       string           `json:"email"`
	DisplayName string           `json:"display_name,omitempty"`
	Role        sec.Role         `json:"role"`
	Permissions []sec.Permission `json:"permissions"`
	LastLoginAt *time.Time       `json:"last_login_at,omitempty"`
}

// Profile projects the account into its public view.
func (user *User) Profile() Profile {
	return Profile{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		Permissions: sec.Permissions(user.Role),
		LastLoginAt: user.LastLoginAt,
	}
}
