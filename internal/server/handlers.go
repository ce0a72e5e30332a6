package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	spedec "example.com/spedec"
	"example.com/spedec/internal/common"
	"example.com/spedec/internal/export"
	"example.com/spedec/internal/report"
)

type inspectRequest struct {
	Input  string `json:"input"`
	Strict *bool  `json:"strict"`
}

type decodeRequest struct {
	Input   string `json:"input"`
	Strict  *bool  `json:"strict"`
	Workers int    `json:"workers"`
}

func (s *Server) strictFor(override *bool) bool {
	if override != nil {
		return *override
	}
	return s.strict
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req inspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		http.Error(w, "input required", http.StatusBadRequest)
		return
	}
	inputPath, err := s.resolvePath(req.Input)
	if err != nil {
		http.Error(w, fmt.Sprintf("input resolve: %v", err), http.StatusBadRequest)
		return
	}
	f, err := spedec.Inspect(inputPath, spedec.Options{Strict: s.strictFor(req.Strict)})
	if err != nil {
		http.Error(w, fmt.Sprintf("inspect: %v", err), http.StatusUnprocessableEntity)
		return
	}
	diagArt, err := s.writeDiagnostics(f)
	if err != nil {
		http.Error(w, fmt.Sprintf("write diagnostics: %v", err), http.StatusInternalServerError)
		return
	}
	rep := report.Build(f.Report.File, "", f.Metadata, f.Report, nil)
	resp := struct {
		Report    report.DecodeReport `json:"report"`
		Artifacts []ArtifactRef       `json:"artifacts"`
	}{
		Report:    rep,
		Artifacts: []ArtifactRef{toRef(diagArt)},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stream := r.URL.Query().Get("stream") == "true"
	var req decodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		http.Error(w, "input required", http.StatusBadRequest)
		return
	}
	inputPath, err := s.resolvePath(req.Input)
	if err != nil {
		http.Error(w, fmt.Sprintf("input resolve: %v", err), http.StatusBadRequest)
		return
	}
	workers := req.Workers
	if workers <= 0 {
		workers = s.concurrency
	}
	opts := spedec.Options{Strict: s.strictFor(req.Strict), Workers: workers}

	if stream {
		writer := NewNDJSONWriter(w)
		w.Header().Set("Content-Type", "application/x-ndjson")
		f, err := spedec.OpenOptions(inputPath, opts)
		if err != nil {
			_ = writer.WriteObject(map[string]any{"type": "error", "error": err.Error()})
			return
		}
		for _, v := range f.Report.Violations {
			if err := writer.WriteViolation(v); err != nil {
				return
			}
		}
		rep, arts, err := s.decodeArtifacts(inputPath, f)
		if err != nil {
			_ = writer.WriteObject(map[string]any{"type": "error", "error": err.Error()})
			return
		}
		summary := struct {
			Type      string              `json:"type"`
			Report    report.DecodeReport `json:"report"`
			Artifacts []ArtifactRef       `json:"artifacts"`
		}{
			Type:      "report",
			Report:    rep,
			Artifacts: arts,
		}
		_ = writer.WriteObject(summary)
		return
	}

	f, err := spedec.OpenOptions(inputPath, opts)
	if err != nil {
		http.Error(w, fmt.Sprintf("decode: %v", err), http.StatusUnprocessableEntity)
		return
	}
	rep, arts, err := s.decodeArtifacts(inputPath, f)
	if err != nil {
		http.Error(w, fmt.Sprintf("decode artifacts: %v", err), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Report    report.DecodeReport `json:"report"`
		Artifacts []ArtifactRef       `json:"artifacts"`
	}{
		Report:    rep,
		Artifacts: arts,
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeArtifacts renders the full artifact set for a decoded file:
// diagnostics, JSON and PDF reports, and the CBOR dataset.
func (s *Server) decodeArtifacts(inputPath string, f *spedec.File) (report.DecodeReport, []ArtifactRef, error) {
	digest, err := common.FileSHA256(inputPath)
	if err != nil {
		return report.DecodeReport{}, nil, fmt.Errorf("digest: %w", err)
	}
	rep := report.Build(f.Report.File, digest, f.Metadata, f.Report, f.Dataset)

	diagArt, err := s.writeDiagnostics(f)
	if err != nil {
		return rep, nil, err
	}
	jsonPath, err := s.tempPath("report-*.json")
	if err != nil {
		return rep, nil, err
	}
	if err := report.SaveJSON(rep, jsonPath); err != nil {
		return rep, nil, err
	}
	jsonArt, err := s.addArtifact(jsonPath, "decode_report.json", "application/json", "report")
	if err != nil {
		return rep, nil, err
	}
	pdfPath, err := s.tempPath("report-*.pdf")
	if err != nil {
		return rep, nil, err
	}
	if err := report.SaveDecodePDF(rep, pdfPath); err != nil {
		return rep, nil, err
	}
	pdfArt, err := s.addArtifact(pdfPath, "decode_report.pdf", "application/pdf", "report")
	if err != nil {
		return rep, nil, err
	}
	cborPath, err := s.tempPath("dataset-*.cbor")
	if err != nil {
		return rep, nil, err
	}
	if err := export.WriteFile(cborPath, f.Dataset); err != nil {
		return rep, nil, err
	}
	cborArt, err := s.addArtifact(cborPath, "dataset.cbor", "application/cbor", "dataset")
	if err != nil {
		return rep, nil, err
	}
	arts := []ArtifactRef{toRef(diagArt), toRef(jsonArt), toRef(pdfArt), toRef(cborArt)}
	return rep, arts, nil
}

func (s *Server) writeDiagnostics(f *spedec.File) (Artifact, error) {
	diagPath, err := s.tempPath("diagnostics-*.ndjson")
	if err != nil {
		return Artifact{}, err
	}
	if err := f.Report.WriteNDJSON(diagPath); err != nil {
		return Artifact{}, err
	}
	return s.addArtifact(diagPath, "diagnostics.ndjson", "application/x-ndjson", "diagnostics")
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.listArtifacts())
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	disposition := fmt.Sprintf("attachment; filename=\"%s\"", art.Name)
	w.Header().Set("Content-Disposition", disposition)
	io.Copy(w, f)
}
