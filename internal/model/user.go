package model

import "time"

// User is the credential-store record. The password hash and the current
// refresh token never leave the service layer.
type User struct {
	ID                    string    `json:"id"`
	Username              string    `json:"username"`
	Email                 string    `json:"email"`
	Phone                 string    `json:"phone"`
	DisplayName           string    `json:"name"`
	PasswordHash          string    `json:"-"`
	RefreshToken          string    `json:"-"`
	RefreshTokenExpiresAt time.Time `json:"-"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Profile is the public projection of a user, including every role held.
type Profile struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	DisplayName string   `json:"name"`
	Roles       []string `json:"roles"`
}

// AuthClaims is the decoded identity carried by an access token.
type AuthClaims struct {
	UserID      string   `json:"sub"`
	Username    string   `json:"username"`
	DisplayName string   `json:"name"`
	Roles       []string `json:"roles"`
	TokenID     string   `json:"jti"`
}

// HasRole reports whether the claim set carries the given role,
// compared case-insensitively.
func (c *AuthClaims) HasRole(name string) bool {
	for _, role := range c.Roles {
		if equalFold(role, name) {
			return true
		}
	}
	return false
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
