package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SpeakRequest describes one synthesis run loaded from a file.
//
//	speaker: zh_female_wanwanxiaohe_moon_bigtts
//	format: pcm
//	sample_rate: 24000
//	texts:
//	  - 你好，
//	  - 世界！
type SpeakRequest struct {
	Speaker    string   `yaml:"speaker,omitempty" json:"speaker,omitempty"`
	Format     string   `yaml:"format,omitempty" json:"format,omitempty"`
	SampleRate int      `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty"`
	Texts      []string `yaml:"texts" json:"texts"`
}

// LoadRequest loads a request from a YAML or JSON file into the provided struct
func LoadRequest(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return ParseRequest(data, path, v)
}

// ParseRequest parses request data based on file extension or content
func ParseRequest(data []byte, filename string, v any) error {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		// Try YAML first, then JSON
		if err := yaml.Unmarshal(data, v); err != nil {
			if err2 := json.Unmarshal(data, v); err2 != nil {
				return fmt.Errorf("failed to parse file (tried YAML and JSON)")
			}
		}
	}

	return nil
}

// ReadLines reads non-empty, trimmed lines from r. Each line becomes one text
// submission.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}
