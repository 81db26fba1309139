package instance

import (
	"os"

	"github.com/angelmondragon/labstock-backend/pkg/env"
)

const fallbackID = "labstock-0"

// ID identifies this process in logs: LABSTOCK_INSTANCE_ID, then the
// hostname, then a fixed default.
func ID() string {
	if id := env.Get("LABSTOCK_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
