// Package all registers every storage backend. Import it for side effects.
package all

import (
	_ "csvload/internal/storage/mssql"
	_ "csvload/internal/storage/mysql"
	_ "csvload/internal/storage/postgres"
	_ "csvload/internal/storage/sqlite"
)
