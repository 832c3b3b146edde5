package static

import (
	"embed"
	"io/fs"
)

//go:embed index.html
var assets embed.FS

// Open opens an embedded dashboard asset.
func Open(name string) (fs.File, error) {
	return assets.Open(name)
}
