package database

import (
	"context"
	"time"

	"github.com/jackc/pgx"

	"github.com/hayat-his/hcx-app/log"
)

// StartHealthCheck verifies the queue pool's connections on an interval.
// pgx v3 pools hand back broken connections after a database restart; pinging
// from a background goroutine evicts them before a worker trips over one.
func StartHealthCheck(ctx context.Context, pool *pgx.ConnPool, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				conn, err := pool.Acquire()
				if err != nil {
					log.Worker.Warnf("health check failed to acquire connection %s", err.Error())
					continue
				}
				if err := conn.Ping(ctx); err != nil {
					log.Worker.Warnf("health check ping failed %s", err.Error())
				}
				pool.Release(conn)
			}
		}
	}()
}
