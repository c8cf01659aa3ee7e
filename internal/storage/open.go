package storage

import (
	"fmt"
	"strings"

	logx "routinebot/pkg/logx"
)

// Open initializes the configured store. An empty or "none" driver yields an
// in-memory store so the bot stays usable without persistence.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none", "memory":
		if driver != "memory" {
			log.Warn("storage disabled; overrides will not survive a restart")
		}
		return NewMemory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
