//go:build !debug

package dist

import (
	"embed"
	"io/fs"
)

//go:embed index.html app.js app.css
var content embed.FS

var Content fs.FS = content
