package main

import (
	"strconv"
	"time"
)

// parseDuration accepts Go durations ("90m") and bare seconds ("3600")
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}
