// internal/domain/session/dto.go
package session

import "time"

type SessionResponse struct {
	ID               string     `json:"id"`
	Device           DeviceInfo `json:"device"`
	DeviceLabel      string     `json:"device_label"`
	CreatedAt        time.Time  `json:"created_at"`
	LastActivityAt   time.Time  `json:"last_activity_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RememberMe       bool       `json:"remember_me"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	Current          bool       `json:"current"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

type TerminateOthersResponse struct {
	Terminated int `json:"terminated"`
}

// Status summarises a validated session for response headers.
type Status struct {
	RemainingSeconds int64
	IdleSeconds      int64
	AboutToExpire    bool
}

func NewStatus(s *Session, now time.Time) Status {
	return Status{
		RemainingSeconds: int64(s.RemainingTTL(now).Seconds()),
		IdleSeconds:      int64(s.IdleRemaining(now).Seconds()),
		AboutToExpire:    s.AboutToExpire(now),
	}
}

func ToResponse(s *Session, currentID string, now time.Time) SessionResponse {
	return SessionResponse{
		ID:               s.ID,
		Device:           s.Device,
		DeviceLabel:      s.Device.Label(),
		CreatedAt:        s.CreatedAt,
		LastActivityAt:   s.LastActivityAt,
		ExpiresAt:        s.ExpiresAt,
		RememberMe:       s.RememberMe,
		RemainingSeconds: int64(s.RemainingTTL(now).Seconds()),
		Current:          s.ID == currentID,
	}
}

func ToListResponse(sessions []*Session, currentID string, now time.Time) SessionListResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, ToResponse(s, currentID, now))
	}
	return SessionListResponse{Sessions: out, Total: len(out)}
}
