// retry.go provides automatic retry logic for transient SQLite errors.
//
// The CLI, the watch loop and the HTTP server may all hold the same WAL-mode
// database open. Concurrent writers can see SQLITE_BUSY, SQLITE_LOCKED or
// IOERR_SHORT_READ (522). busy_timeout absorbs most SQLITE_BUSY cases at the
// connection level; the rest are retried here with exponential backoff and
// jitter.
package store

import (
	"math/rand/v2"
	"strings"
	"time"
)

// retryConfig controls retry behavior for transient SQLite errors.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// defaultRetryConfig is used for every store write. Trigger syncs issue up
// to DefaultMaxPending writes in a row, so the budget stays short.
var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// isTransientSQLiteErr reports whether err is worth retrying: SQLITE_BUSY (5),
// SQLITE_LOCKED (6), SQLITE_IOERR_SHORT_READ (522), or the "database is
// locked" text modernc.org/sqlite reports once busy_timeout runs out.
func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	// SQLite error codes embedded in error messages from modernc.org/sqlite.
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"IOERR_SHORT_READ",
		"database is locked",
		"database table is locked",
		"(5)",   // SQLITE_BUSY code
		"(6)",   // SQLITE_LOCKED code
		"(522)", // SQLITE_IOERR_SHORT_READ code
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// retryOp runs fn until it succeeds, fails permanently, or the retry budget
// is spent.
func retryOp(cfg retryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientSQLiteErr(lastErr) {
			return lastErr
		}
		if attempt < cfg.maxRetries {
			time.Sleep(backoffDelay(cfg, attempt))
		}
	}
	return lastErr
}

// backoffDelay is min(baseDelay*2^attempt, maxDelay) plus up to one
// baseDelay of jitter.
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := min(cfg.baseDelay<<uint(attempt), cfg.maxDelay)
	return delay + time.Duration(rand.Int64N(int64(cfg.baseDelay)))
}
