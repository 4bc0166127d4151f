package db

import (
	"fmt"
	"net/url"

	"github.com/tuncanbit/ledger/pkg/config"
)

// GetDBDSN returns the driver-specific data source name.
func GetDBDSN(config *config.DatabaseConfig) string {
	if config.Driver == "sqlite3" {
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", config.Path)
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(config.User),
		url.QueryEscape(config.Password),
		config.Host,
		config.Port,
		config.DBName,
		config.SSLMode,
	)
}
