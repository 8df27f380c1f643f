package services

import (
	"log"
	"os"
	"strings"
)

var styleDebugEnabled = false

func init() {
	// Enable debug logging with STYLE_DEBUG=1, true or yes
	if v := os.Getenv("STYLE_DEBUG"); v != "" {
		v = strings.ToLower(v)
		styleDebugEnabled = v == "1" || v == "true" || v == "yes"
		if styleDebugEnabled {
			log.Println("[STYLE] Debug logging: ENABLED")
		}
	}
}

// debugLog logs only when STYLE_DEBUG is enabled.
// Use this for per-request details: prompts, raw model output, cache hits/misses.
func debugLog(format string, args ...interface{}) {
	if styleDebugEnabled {
		log.Printf("[STYLE DEBUG] "+format, args...)
	}
}

// infoLog always logs important pipeline events.
// Use this for provider failures, degraded fallbacks, variant errors.
func infoLog(format string, args ...interface{}) {
	log.Printf("[STYLE] "+format, args...)
}

// truncate shortens s for log lines
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
