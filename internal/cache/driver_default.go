//go:build !modernc

package cache

import (
	_ "github.com/mattn/go-sqlite3"
)

// driverName is the database/sql driver name cache.Open dials. The default
// build uses mattn/go-sqlite3 (cgo), matching the teacher's own
// sql.Open("sqlite3", …) in internal/store/local_core.go.
const driverName = "sqlite3"
