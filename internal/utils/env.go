package utils

import "os"

// SafeEnv returns the environment variable value for key, or fallback if empty.
func SafeEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// DeviceLocale reads the process locale the way libc does: LC_ALL, then
// LC_MESSAGES, then LANG.
func DeviceLocale() string {
	return SafeEnv("LC_ALL", SafeEnv("LC_MESSAGES", SafeEnv("LANG", "")))
}
