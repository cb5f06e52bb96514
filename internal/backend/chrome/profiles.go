package chrome

import "github.com/pagepulse/pagepulse/internal/audit"

// Profile describes the device and network emulation applied for one mode.
type Profile struct {
	Name              string
	Width             int64
	Height            int64
	ScaleFactor       float64
	Mobile            bool
	UserAgent         string
	LatencyMs         float64
	DownloadBytesSec  float64
	UploadBytesSec    float64
	ThrottleCPURate   float64
	EmulateThrottling bool
}

// Moto G Power-class emulation, matching the common mobile audit profile.
var mobileProfile = Profile{
	Name:        "mobile",
	Width:       412,
	Height:      823,
	ScaleFactor: 2.625,
	Mobile:      true,
	UserAgent: "Mozilla/5.0 (Linux; Android 11; moto g power (2022)) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
	LatencyMs:         150,
	DownloadBytesSec:  1.6 * 1024 * 1024 / 8,
	UploadBytesSec:    750 * 1024 / 8,
	ThrottleCPURate:   4,
	EmulateThrottling: true,
}

var desktopProfile = Profile{
	Name:        "desktop",
	Width:       1350,
	Height:      940,
	ScaleFactor: 1,
	Mobile:      false,
}

// ProfileFor maps a concrete audit mode to its emulation profile.
func ProfileFor(mode audit.Mode) Profile {
	if mode == audit.ModeDesktop {
		return desktopProfile
	}
	return mobileProfile
}
