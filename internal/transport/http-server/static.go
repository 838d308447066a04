package http_server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const indexFile = "index.html"

// spaHandler serves built client files and falls back to index.html for
// unknown paths.
type spaHandler struct {
	dir        string
	fileServer http.Handler
}

func newSPAHandler(dir string) *spaHandler {
	return &spaHandler{
		dir:        dir,
		fileServer: http.FileServer(http.Dir(dir)),
	}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}
	name := path.Clean("/" + r.URL.Path)
	info, err := os.Stat(filepath.Join(h.dir, filepath.FromSlash(strings.TrimPrefix(name, "/"))))
	if err == nil && !info.IsDir() {
		h.fileServer.ServeHTTP(w, r)
		return
	}
	index := filepath.Join(h.dir, indexFile)
	if _, err = os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}
