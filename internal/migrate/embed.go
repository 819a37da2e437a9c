package migrate

import (
	"database/sql"
	"embed"
	"io/fs"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

//go:embed seeds/*.sql
var seedFiles embed.FS

// Embedded returns a Manager over the SQL shipped inside the binary.
func Embedded(db *sql.DB, opts ...Option) *Manager {
	migrations, _ := fs.Sub(migrationFiles, "sql")
	seeds, _ := fs.Sub(seedFiles, "seeds")
	return NewManager(db, migrations, seeds, opts...)
}
