package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]any{
		"name":  "test",
		"value": 123,
	}

	err := Output(data, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if result["name"] != "test" {
		t.Errorf("name = %v, want %q", result["name"], "test")
	}
}

func TestOutput_YAML(t *testing.T) {
	var buf bytes.Buffer

	err := Output(map[string]any{"name": "test"}, OutputOptions{Writer: &buf})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if !strings.Contains(buf.String(), "name: test") {
		t.Errorf("Output should contain 'name: test', got: %s", buf.String())
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	err := Output("x", OutputOptions{Format: "xml", Writer: &bytes.Buffer{}})
	if err == nil {
		t.Error("Output with unsupported format should fail")
	}
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
	}{
		{"yaml", "req.yaml", "speaker: spk\nsample_rate: 16000\ntexts:\n  - 你好\n  - 世界\n"},
		{"json", "req.json", `{"speaker":"spk","sample_rate":16000,"texts":["你好","世界"]}`},
		{"sniffed", "req", `{"speaker":"spk","sample_rate":16000,"texts":["你好","世界"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req SpeakRequest
			if err := ParseRequest([]byte(tt.data), tt.filename, &req); err != nil {
				t.Fatalf("ParseRequest error: %v", err)
			}
			if req.Speaker != "spk" || req.SampleRate != 16000 {
				t.Errorf("request = %+v", req)
			}
			if strings.Join(req.Texts, "|") != "你好|世界" {
				t.Errorf("Texts = %v", req.Texts)
			}
		})
	}
}

func TestLoadRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speak.yaml")
	if err := os.WriteFile(path, []byte("texts: [hello]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	var req SpeakRequest
	if err := LoadRequest(path, &req); err != nil {
		t.Fatalf("LoadRequest error: %v", err)
	}
	if len(req.Texts) != 1 || req.Texts[0] != "hello" {
		t.Errorf("Texts = %v, want [hello]", req.Texts)
	}

	if err := LoadRequest(filepath.Join(t.TempDir(), "missing.yaml"), &req); err == nil {
		t.Error("LoadRequest of a missing file should fail")
	}
}

func TestReadLines(t *testing.T) {
	lines, err := ReadLines(strings.NewReader("  first line \n\n second\n\t\nthird"))
	if err != nil {
		t.Fatalf("ReadLines error: %v", err)
	}
	want := []string{"first line", "second", "third"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("ReadLines() = %q, want %q", lines, want)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{999 * time.Millisecond, "999ms"},
		{1500 * time.Millisecond, "1.5s"},
		{59 * time.Second, "59.0s"},
		{90 * time.Second, "1m30.0s"},
		{125500 * time.Millisecond, "2m5.5s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1048576, "1.00 MB"},
		{1073741824, "1.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatBytes(tt.bytes); got != tt.want {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestPCMDuration(t *testing.T) {
	tests := []struct {
		bytes int64
		rate  int
		want  time.Duration
	}{
		{48000, 24000, time.Second},
		{24000, 24000, 500 * time.Millisecond},
		{32000, 16000, time.Second},
		{100, 0, 0},
	}
	for _, tt := range tests {
		if got := PCMDuration(tt.bytes, tt.rate); got != tt.want {
			t.Errorf("PCMDuration(%d, %d) = %v, want %v", tt.bytes, tt.rate, got, tt.want)
		}
	}
}

func TestSummary_Render(t *testing.T) {
	s := Summary{
		Styles: NewStyles(DefaultTheme),
		Title:  "doubaotts speak",
		Status: "completed",
		Rows: []Row{
			{Label: "Session", Value: "abc"},
			{Label: "Audio", Value: strings.Repeat("x", 200)},
		},
	}
	out := s.Render(40)
	lines := strings.Split(out, "\n")
	if len(lines) != 6 {
		t.Fatalf("Render() has %d lines, want 6:\n%s", len(lines), out)
	}
	if !strings.Contains(out, "completed") || !strings.Contains(out, "Session") {
		t.Errorf("Render() missing content:\n%s", out)
	}
	if !strings.Contains(out, "…") {
		t.Errorf("Render() should truncate long values:\n%s", out)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"你好世界", 4, "你好"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateString(tt.s, tt.width); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
	}
}
