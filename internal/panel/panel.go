package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
)

// widgetFragmentExt is the extension of widget template fragments.
const widgetFragmentExt = ".part"

func init() {
	if err := mime.AddExtensionType(widgetFragmentExt, "text/html; charset=utf-8"); err != nil {
		panic(fmt.Sprintf("panel: registering %s type: %v", widgetFragmentExt, err))
	}
}

//go:embed web/*
var content embed.FS

// Handler returns an http.Handler that serves the dashboard page.
//
// When dir is non-empty and the directory exists, assets are served from the
// filesystem (dev mode, no recompile needed after editing the page).
// When dir is empty, assets are served from the embedded go:embed FS.
//
// Panics if the embedded web assets cannot be loaded (build error).
func Handler(dir string) http.Handler {
	var fileSystem http.FileSystem

	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			fileSystem = http.Dir(dir)
		}
	}

	// Fall back to embedded assets if dir was empty or didn't exist
	if fileSystem == nil {
		webFS, err := fs.Sub(content, "web")
		if err != nil {
			panic(fmt.Sprintf("panel: failed to load embedded web assets: %v", err))
		}
		fileSystem = http.FS(webFS)
	}

	fileServer := http.FileServer(fileSystem)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		// Clean the path
		upath := path.Clean(r.URL.Path)
		if upath == "." {
			upath = "/"
		}

		// For root, let FileServer handle it (serves index.html automatically)
		if upath == "/" {
			fileServer.ServeHTTP(w, r)
			return
		}

		// Try to open the requested file
		filePath := upath[1:] // strip leading /
		f, err := fileSystem.Open(filePath)
		if err != nil {
			if path.Ext(upath) != "" {
				http.NotFound(w, r)
				return
			}
			// Page route: serve index.html with 200
			r.URL.Path = "/"
			fileServer.ServeHTTP(w, r)
			return
		}
		f.Close()

		// File exists, serve it directly
		fileServer.ServeHTTP(w, r)
	})
}
