package instance

import "os"

// GetID identifies the running process in logs and lock ownership. WORKER_ID
// wins over the platform dyno name and the hostname.
func GetID() string {
	for _, env := range []string{"WORKER_ID", "DYNO"} {
		if id := os.Getenv(env); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
