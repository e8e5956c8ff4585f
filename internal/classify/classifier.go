// Package classify buckets user-agent strings into coarse device, browser and
// OS labels. The rules are ordered, case-sensitive substring checks and the
// first match wins; downstream reports depend on this exact ordering (a UA
// carrying both "Chrome" and "Safari" tokens is Chrome), so do not reorder.
package classify

import (
	"strings"

	"github.com/mssola/useragent"
)

const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"

	BrowserChrome  = "Chrome"
	BrowserSafari  = "Safari"
	BrowserFirefox = "Firefox"
	BrowserEdge    = "Edge"
	BrowserOther   = "Other"

	OSWindows = "Windows"
	OSMacOS   = "macOS"
	OSIOS     = "iOS"
	OSAndroid = "Android"
	OSLinux   = "Linux"
	OSOther   = "Other"
)

// Classification is the coarse label triple for one user-agent string, plus
// the parsed browser name/version for display.
type Classification struct {
	Device         string `json:"device"`
	Browser        string `json:"browser"`
	OS             string `json:"os"`
	BrowserVersion string `json:"browser_version,omitempty"`
}

func Classify(ua string) Classification {
	c := Classification{
		Device:  Device(ua),
		Browser: Browser(ua),
		OS:      OS(ua),
	}
	if ua != "" {
		parsed := useragent.New(ua)
		name, version := parsed.Browser()
		if name != "" && version != "" {
			c.BrowserVersion = name + " " + version
		}
	}
	return c
}

func Device(ua string) string {
	switch {
	case strings.Contains(ua, "Mobile") || strings.Contains(ua, "iPhone") || strings.Contains(ua, "Android"):
		return DeviceMobile
	case strings.Contains(ua, "iPad") || strings.Contains(ua, "Tablet"):
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

func Browser(ua string) string {
	switch {
	case strings.Contains(ua, "Chrome"):
		return BrowserChrome
	case strings.Contains(ua, "Safari"):
		return BrowserSafari
	case strings.Contains(ua, "Firefox"):
		return BrowserFirefox
	case strings.Contains(ua, "Edge"):
		return BrowserEdge
	default:
		return BrowserOther
	}
}

func OS(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return OSWindows
	case strings.Contains(ua, "Mac OS X") || strings.Contains(ua, "macOS"):
		return OSMacOS
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad"):
		return OSIOS
	case strings.Contains(ua, "Android"):
		return OSAndroid
	case strings.Contains(ua, "Linux"):
		return OSLinux
	default:
		return OSOther
	}
}
