package devicetrust

import (
	"regexp"
	"strings"
)

var (
	minorVersionRe = regexp.MustCompile(`(\d+)(?:[._]\d+)+`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// NormalizeUserAgent keeps only the major component of every dotted version number
// and collapses whitespace, so routine browser and OS point releases keep the same
// fingerprint while a different browser, platform, or major version does not.
//
//	"Chrome/120.0.6099.109" -> "Chrome/120"
//	"Mac OS X 10_15_7"      -> "Mac OS X 10"
func NormalizeUserAgent(ua string) string {
	ua = strings.TrimSpace(ua)
	ua = minorVersionRe.ReplaceAllString(ua, "$1")
	return whitespaceRe.ReplaceAllString(ua, " ")
}

// Label returns a short human description such as "Firefox on Windows" for device listings.
func Label(ua string) string {
	browser := browserName(ua)
	platform := platformName(ua)
	switch {
	case browser == "" && platform == "":
		return "Unknown device"
	case browser == "":
		return platform
	case platform == "":
		return browser
	default:
		return browser + " on " + platform
	}
}

func browserName(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"):
		return "Edge"
	case strings.Contains(ua, "OPR/"):
		return "Opera"
	case strings.Contains(ua, "Firefox/"):
		return "Firefox"
	case strings.Contains(ua, "Chrome/"), strings.Contains(ua, "CriOS/"):
		return "Chrome"
	case strings.Contains(ua, "Safari/"):
		return "Safari"
	default:
		return ""
	}
}

func platformName(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		return "iOS"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Mac OS X"), strings.Contains(ua, "Macintosh"):
		return "macOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return ""
	}
}
