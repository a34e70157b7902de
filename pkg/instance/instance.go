package instance

import "os"

// GetID identifies this process in logs and lock ownership. It prefers an
// explicit PAYFLOW_INSTANCE_ID, then the hostname, then a fixed fallback.
func GetID() string {
	if id := os.Getenv("PAYFLOW_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
