package api

import (
	"embed"
	"io/fs"
)

//go:embed static
var staticFS embed.FS

// staticFiles exposes the embedded chat client rooted at the static
// directory, so "/" serves index.html.
func staticFiles() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// The static directory is embedded at compile time.
		panic(err)
	}
	return sub
}
