package handlers

import (
	"errors"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"camclip/internal/storage"
)

// File serves GET /files/* for signed links issued by the filesystem store.
func (a *App) File(w http.ResponseWriter, r *http.Request) {
	if a.Files == nil {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	key := chi.URLParam(r, "*")
	q := r.URL.Query()
	if err := a.Files.Verify(key, q.Get("expires"), q.Get("sig")); err != nil {
		a.error(w, http.StatusForbidden, "forbidden", "link is invalid or has expired")
		return
	}
	f, err := a.Files.Open(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "file not found")
			return
		}
		a.Logger.Error().Err(err).Str("key", key).Msg("open file failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not read file")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "could not read file")
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, path.Base(key), info.ModTime(), f)
}
