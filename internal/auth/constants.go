// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Field Identifiers

const (
	FieldLogin        = "login"
	FieldPassword     = "password"
	FieldRefreshToken = "refresh_token"
	FieldAccessToken  = "access_token"
	FieldTokenType    = "token_type"
	FieldExpiresIn    = "expires_in"
	FieldUser         = "user"
	FieldCSRFToken    = "csrf_token"
)

// # Input Constraints

const (
	// MaxLoginLength bounds the username/email field.
	MaxLoginLength = 254

	// MaxPasswordLength is the longest input bcrypt hashes without truncation.
	MaxPasswordLength = 72

	// TokenTypeBearer is reported alongside every issued access token.
	TokenTypeBearer = "Bearer"
)
