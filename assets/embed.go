// assets/embed.go
//
// Embedded files shipped inside the binary.
// Currently the SQL migrations applied by internal/database on startup.

package assets

import (
	"embed"
	"io/fs"
)

//go:embed sql/*.sql
var files embed.FS

// Migrations returns the migration scripts rooted at their directory,
// so names look like "001_init.sql".
func Migrations() fs.FS {
	sub, err := fs.Sub(files, "sql")
	if err != nil {
		panic(err) // the pattern above guarantees the directory exists
	}
	return sub
}
