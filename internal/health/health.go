// Package health reports liveness and database readiness.
package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Report is the readiness payload.
type Report struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

type Checker struct {
	db      Pinger
	timeout time.Duration
}

func NewChecker(db Pinger, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{db: db, timeout: timeout}
}

// Ready pings the database and reports whether the service can take traffic.
func (c *Checker) Ready(ctx context.Context) (Report, bool) {
	if c == nil || c.db == nil {
		return Report{Status: "unavailable", Database: "unconfigured"}, false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return Report{Status: "unavailable", Database: "down", Error: err.Error()}, false
	}
	return Report{Status: "ready", Database: "up"}, true
}
