package handlers

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *App) ListGallery(w http.ResponseWriter, r *http.Request) {
	items, err := a.Gallery.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, items)
}

func (a *App) GetGalleryItem(w http.ResponseWriter, r *http.Request) {
	item, err := a.Gallery.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, item)
}

func (a *App) DeleteGalleryItem(w http.ResponseWriter, r *http.Request) {
	if err := a.Gallery.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "success"})
}

// GalleryArchive downloads the record and its artifacts as one zip.
func (a *App) GalleryArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var buf bytes.Buffer
	if err := a.Gallery.Archive(r.Context(), id, &buf); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
