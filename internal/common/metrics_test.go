package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.SetTotalBytes(200)
	m.AddFrame(50)
	m.AddFrame(50)
	m.AddFrame(-1) // ignored
	m.Stop()

	s := m.Snapshot()
	if s.Frames != 2 {
		t.Errorf("frames = %d, want 2", s.Frames)
	}
	if s.Bytes != 100 {
		t.Errorf("bytes = %d, want 100", s.Bytes)
	}
	if got := s.Completion(); got != 0.5 {
		t.Errorf("completion = %v, want 0.5", got)
	}
	if s.Duration <= 0 {
		t.Errorf("duration = %v", s.Duration)
	}
	if s.ThroughputBytesPerSecond() <= 0 {
		t.Errorf("throughput = %v", s.ThroughputBytesPerSecond())
	}
}

func TestMetricsCompletionClamped(t *testing.T) {
	m := NewMetrics()
	m.SetTotalBytes(10)
	m.AddFrame(25)
	if got := m.Snapshot().Completion(); got != 1 {
		t.Errorf("completion = %v, want 1", got)
	}

	var zero MetricsSnapshot
	if got := zero.Completion(); got != 0 {
		t.Errorf("zero completion = %v", got)
	}
	if got := zero.ThroughputBytesPerSecond(); got != 0 {
		t.Errorf("zero throughput = %v", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KiB"},
		{5 * 1024 * 1024, "5.00 MiB"},
	}
	for _, tc := range cases {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := FileSHA256(path)
	if err != nil {
		t.Fatalf("FileSHA256: %v", err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("digest = %s, want %s", got, want)
	}
	if _, err := FileSHA256(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
