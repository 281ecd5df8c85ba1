package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/tvstream/internal/config"
)

// applicationName is reported to the server in pg_stat_activity.
const applicationName = "tvstream"

// BuildConnString builds a PostgreSQL connection URL from config. User and
// password are escaped as URL userinfo.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", applicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
