// internal/domain/session/device.go
package session

import (
	"strings"

	"github.com/dmitrymomot/foundation/pkg/useragent"
)

type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
	DeviceBot     DeviceType = "bot"
	DeviceUnknown DeviceType = "unknown"
)

// DeviceInfo is the client fingerprint captured when a session is created.
// It is used for anomaly signals and display only.
type DeviceInfo struct {
	IPAddress  string     `json:"ip_address"`
	UserAgent  string     `json:"user_agent"`
	DeviceType DeviceType `json:"device_type"`
	OS         string     `json:"os,omitempty"`
	Browser    string     `json:"browser,omitempty"`
}

// NewDeviceInfo parses the user agent. Unparseable agents fall back to keyword detection.
func NewDeviceInfo(ip, userAgent string) *DeviceInfo {
	info := &DeviceInfo{
		IPAddress:  strings.TrimSpace(ip),
		UserAgent:  userAgent,
		DeviceType: DeviceUnknown,
	}
	if userAgent == "" {
		return info
	}

	ua, err := useragent.Parse(userAgent)
	if err != nil {
		info.DeviceType = DetectDeviceType(userAgent)
		return info
	}

	info.DeviceType = normalizeDeviceType(string(ua.DeviceType()), userAgent)
	info.OS = string(ua.OS())
	info.Browser = string(ua.BrowserName())
	return info
}

// DetectDeviceType classifies a user agent by keywords.
func DetectDeviceType(userAgent string) DeviceType {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return DeviceUnknown
	case strings.Contains(ua, "mobile") || (strings.Contains(ua, "android") && !strings.Contains(ua, "tablet")):
		return DeviceMobile
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		return DeviceTablet
	case strings.Contains(ua, "windows") || strings.Contains(ua, "macintosh") || strings.Contains(ua, "linux"):
		return DeviceDesktop
	default:
		return DeviceUnknown
	}
}

func normalizeDeviceType(parsed, userAgent string) DeviceType {
	switch DeviceType(strings.ToLower(parsed)) {
	case DeviceMobile:
		return DeviceMobile
	case DeviceTablet:
		return DeviceTablet
	case DeviceDesktop:
		return DeviceDesktop
	case DeviceBot:
		return DeviceBot
	}
	return DetectDeviceType(userAgent)
}

// Label is a short human readable description, e.g. "chrome on windows (desktop)".
func (d DeviceInfo) Label() string {
	browser, os := d.Browser, d.OS
	if browser == "" {
		browser = "unknown browser"
	}
	if os == "" {
		os = "unknown os"
	}
	return browser + " on " + os + " (" + string(d.DeviceType) + ")"
}
