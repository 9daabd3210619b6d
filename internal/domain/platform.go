package domain

import (
	"fmt"
	"strings"
)

// Platform identifies an external competitive-programming site
type Platform string

const (
	PlatformLeetCode      Platform = "LeetCode"
	PlatformCodeChef      Platform = "CodeChef"
	PlatformGeeksforGeeks Platform = "GeeksforGeeks"
	PlatformCodeforces    Platform = "Codeforces"
)

// AllPlatforms returns every supported platform in sync order
func AllPlatforms() []Platform {
	return []Platform{
		PlatformLeetCode,
		PlatformCodeChef,
		PlatformGeeksforGeeks,
		PlatformCodeforces,
	}
}

// Valid reports whether the platform is one of the supported sites
func (p Platform) Valid() bool {
	switch p {
	case PlatformLeetCode, PlatformCodeChef, PlatformGeeksforGeeks, PlatformCodeforces:
		return true
	}
	return false
}

// ProfileURL returns the public profile page for a handle on this platform
func (p Platform) ProfileURL(handle string) string {
	switch p {
	case PlatformLeetCode:
		return fmt.Sprintf("https://leetcode.com/u/%s/", handle)
	case PlatformCodeChef:
		return fmt.Sprintf("https://www.codechef.com/users/%s", handle)
	case PlatformGeeksforGeeks:
		return fmt.Sprintf("https://www.geeksforgeeks.org/user/%s/", handle)
	case PlatformCodeforces:
		return fmt.Sprintf("https://codeforces.com/profile/%s", handle)
	}
	return ""
}

// ParsePlatform converts a string to a Platform, case-insensitively
func ParsePlatform(s string) (Platform, error) {
	for _, p := range AllPlatforms() {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown platform %q", ErrInvalidRequest, s)
}
