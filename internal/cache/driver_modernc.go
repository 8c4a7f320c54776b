//go:build modernc

package cache

import (
	_ "modernc.org/sqlite"
)

// driverName selects modernc.org/sqlite's pure-Go driver under the
// "modernc" build tag, for deployments that can't use cgo. Schema and
// queries are unchanged; modernc.org/sqlite registers itself under the
// "sqlite" (not "sqlite3") driver name.
const driverName = "sqlite"
