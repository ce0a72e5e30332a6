package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"example.com/spedec/internal/report"
	"example.com/spedec/internal/samples"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(Options{StorageDir: t.TempDir(), Strict: true})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(NewRouter(s))
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func uploadDemo(t *testing.T, ts *httptest.Server, name string, data []byte) string {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form: %v", err)
	}
	mw.Close()

	resp, err := http.Post(ts.URL+"/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status %d: %s", resp.StatusCode, msg)
	}
	var out struct {
		Files []ArtifactRef `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if len(out.Files) != 1 {
		t.Fatalf("uploaded files = %d", len(out.Files))
	}
	return out.Files[0].ID
}

func TestUploadAndDecode(t *testing.T) {
	_, ts := newTestServer(t)

	cfg := samples.ModernDemo()
	id := uploadDemo(t, ts, samples.ModernFileName, cfg.Bytes())

	reqBody, _ := json.Marshal(map[string]any{"input": id})
	resp, err := http.Post(ts.URL+"/decode", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("decode status %d: %s", resp.StatusCode, msg)
	}
	var out struct {
		Report    report.DecodeReport `json:"report"`
		Artifacts []ArtifactRef       `json:"artifacts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Report.Summary.Frames != 3 || out.Report.Summary.Regions != 2 {
		t.Errorf("summary = %+v", out.Report.Summary)
	}
	if !out.Report.Summary.Pass {
		t.Errorf("expected pass, findings: %+v", out.Report.Findings)
	}
	if len(out.Artifacts) != 4 {
		t.Fatalf("artifacts = %d", len(out.Artifacts))
	}

	// Every produced artifact must be downloadable.
	for _, art := range out.Artifacts {
		dl, err := http.Get(ts.URL + "/artifacts/" + art.ID)
		if err != nil {
			t.Fatalf("download %s: %v", art.Name, err)
		}
		data, _ := io.ReadAll(dl.Body)
		dl.Body.Close()
		if dl.StatusCode != http.StatusOK {
			t.Errorf("download %s status %d", art.Name, dl.StatusCode)
		}
		if art.Name != "diagnostics.ndjson" && len(data) == 0 {
			t.Errorf("artifact %s is empty", art.Name)
		}
	}
}

func TestDecodeStream(t *testing.T) {
	_, ts := newTestServer(t)

	cfg := samples.LegacyDemo()
	id := uploadDemo(t, ts, samples.LegacyFileName, cfg.Bytes())

	reqBody, _ := json.Marshal(map[string]any{"input": id})
	resp, err := http.Post(ts.URL+"/decode?stream=true", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "application/x-ndjson" {
		t.Errorf("content type = %q", got)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	last := lines[len(lines)-1]
	var summary struct {
		Type   string              `json:"type"`
		Report report.DecodeReport `json:"report"`
	}
	if err := json.Unmarshal([]byte(last), &summary); err != nil {
		t.Fatalf("decode summary line: %v", err)
	}
	if summary.Type != "report" {
		t.Errorf("summary type = %q", summary.Type)
	}
	if summary.Report.Summary.Frames != 2 {
		t.Errorf("frames = %d", summary.Report.Summary.Frames)
	}
}

func TestInspectByPath(t *testing.T) {
	_, ts := newTestServer(t)

	dir := t.TempDir()
	if err := samples.WriteFiles(dir); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	path := filepath.Join(dir, samples.ModernFileName)

	reqBody, _ := json.Marshal(map[string]any{"input": path})
	resp, err := http.Post(ts.URL+"/inspect", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("inspect status %d: %s", resp.StatusCode, msg)
	}
	var out struct {
		Report    report.DecodeReport `json:"report"`
		Artifacts []ArtifactRef       `json:"artifacts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Report.Summary.Version != "modern-3.0" {
		t.Errorf("version = %q", out.Report.Summary.Version)
	}
	if len(out.Report.TrackFields) != 2 {
		t.Errorf("track fields = %+v", out.Report.TrackFields)
	}
	if len(out.Artifacts) != 1 || out.Artifacts[0].Name != "diagnostics.ndjson" {
		t.Errorf("artifacts = %+v", out.Artifacts)
	}
}

func TestUploadKinds(t *testing.T) {
	_, ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("capture", "run01.spe")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	demo := samples.LegacyDemo()
	fw.Write(demo.Bytes())
	fw, err = mw.CreateFormFile("notes", "notes.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write([]byte("exposure sweep\n"))
	mw.Close()

	resp, err := http.Post(ts.URL+"/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status %d: %s", resp.StatusCode, msg)
	}
	var out struct {
		Files []ArtifactRef `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	kinds := make(map[string]string, len(out.Files))
	for _, f := range out.Files {
		kinds[f.Name] = f.Kind
	}
	if kinds["run01.spe"] != "input" {
		t.Errorf("run01.spe kind = %q, want input", kinds["run01.spe"])
	}
	if kinds["notes.txt"] != "upload" {
		t.Errorf("notes.txt kind = %q, want upload", kinds["notes.txt"])
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	_, ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if _, err := mw.CreateFormFile("file", "empty.spe"); err != nil {
		t.Fatalf("form file: %v", err)
	}
	mw.Close()

	resp, err := http.Post(ts.URL+"/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestNDJSONWriterLines(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewNDJSONWriter(rec)
	if err := w.WriteObject(map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteObject(map[string]int{"b": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d: %q", len(lines), rec.Body.String())
	}
	for _, line := range lines {
		var obj map[string]int
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			t.Errorf("line %q: %v", line, err)
		}
	}
}

func TestDecodeRejectsMissingInput(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/decode", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
