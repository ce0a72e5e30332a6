package server

import "net/http"

// NewRouter wires HTTP routes to the server's handlers.
func NewRouter(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/inspect", s.handleInspect)
	mux.HandleFunc("/decode", s.handleDecode)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/artifacts", s.handleArtifacts)
	mux.HandleFunc("/artifacts/", s.handleArtifactDownload)
	return mux
}
