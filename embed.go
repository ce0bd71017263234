package moviepicker

import (
	"embed"
	"io/fs"
)

//go:embed db/migrations/*.sql
var migrationFiles embed.FS

// GetMigrationsFS returns the embedded SQL migrations rooted at db/migrations
func GetMigrationsFS() (fs.FS, error) {
	return fs.Sub(migrationFiles, "db/migrations")
}
