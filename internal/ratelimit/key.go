package ratelimit

import "strings"

// KeyForIP builds a limiter key for a client IP.
func KeyForIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}
	return "ip:" + ip
}
