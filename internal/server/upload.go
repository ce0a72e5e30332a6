package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// maxUploadBytes bounds the multipart form buffer. The decoder streams
// frame blocks from disk afterwards, so this only has to fit the upload
// itself.
const maxUploadBytes = 512 << 20

// handleUpload stores every file in the multipart form and returns one
// artifact reference per file. SPE files are tagged kind "input" so clients
// can tell decodable uploads apart from generated artifacts.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart: %v", err), http.StatusBadRequest)
		return
	}
	form := r.MultipartForm
	if form == nil || len(form.File) == 0 {
		http.Error(w, "no files provided", http.StatusBadRequest)
		return
	}
	var refs []ArtifactRef
	for _, files := range form.File {
		for _, fh := range files {
			art, err := s.storeUpload(fh)
			if err != nil {
				http.Error(w, fmt.Sprintf("store upload %s: %v", fh.Filename, err), http.StatusBadRequest)
				return
			}
			refs = append(refs, toRef(art))
		}
	}
	if len(refs) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Files []ArtifactRef `json:"files"`
	}{Files: refs})
}

// storeUpload copies one uploaded file into the uploads workspace and
// registers it with the artifact store.
func (s *Server) storeUpload(fh *multipart.FileHeader) (Artifact, error) {
	if fh == nil {
		return Artifact{}, errors.New("nil file header")
	}
	if fh.Size == 0 {
		return Artifact{}, errors.New("file is empty")
	}
	src, err := fh.Open()
	if err != nil {
		return Artifact{}, err
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	dest, err := os.CreateTemp(s.uploadsDir, "upload-*"+ext)
	if err != nil {
		return Artifact{}, err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(dest.Name())
		return Artifact{}, err
	}
	if err := dest.Close(); err != nil {
		os.Remove(dest.Name())
		return Artifact{}, err
	}

	kind := "upload"
	if ext == ".spe" {
		kind = "input"
	}
	return s.addArtifact(dest.Name(), fh.Filename, guessContentType(fh.Filename), kind)
}
