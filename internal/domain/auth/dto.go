// internal/domain/auth/dto.go
package auth

import "time"

// LoginRequest accepts a username or an email as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
	IPAddress  string `json:"-"`
	UserAgent  string `json:"-"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
	IPAddress    string `json:"-"`
}

type UnlockRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	SessionID    string    `json:"session_id"`
	IPChanged    bool      `json:"ip_changed,omitempty"`
	User         UserInfo  `json:"user"`
}

type UserInfo struct {
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
}

// Principal is the authenticated caller resolved from an access token.
type Principal struct {
	AccountID     int64
	Username      string
	Role          string
	SessionID     string
	TokenID       string
	TokenExpires  time.Time
	IPChanged     bool
	AboutToExpire bool
	RemainingSecs int64
}

func NewUserInfo(a *Account) UserInfo {
	info := UserInfo{
		AccountID: a.ID,
		Username:  a.Username,
		Role:      a.Role,
	}
	if a.Email.Valid {
		info.Email = a.Email.String
	}
	return info
}
