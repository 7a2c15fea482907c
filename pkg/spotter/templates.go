package spotter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk exemplar format: one file per keyword, each
// exemplar an opaque 2-D coefficient array recorded during training.
type templateFile struct {
	Keyword   string        `yaml:"keyword"`
	Exemplars [][][]float64 `yaml:"exemplars"`
}

// LoadTemplates reads every .yaml template file in dir and returns the
// keyword → exemplar sequences map. The map is read-only after load and safe
// to share across worker goroutines without locking.
func LoadTemplates(dir string) (map[string][][][]float64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	profiles := make(map[string][][][]float64)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", path, err)
		}

		var tf templateFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
		}
		if tf.Keyword == "" || len(tf.Exemplars) == 0 {
			return nil, fmt.Errorf("template %s has no keyword or exemplars", path)
		}
		if err := validateExemplars(tf.Exemplars); err != nil {
			return nil, fmt.Errorf("template %s: %w", path, err)
		}

		profiles[tf.Keyword] = append(profiles[tf.Keyword], tf.Exemplars...)
	}

	return profiles, nil
}

// validateExemplars rejects exemplars with empty or ragged coefficient
// frames. Template files are hand-editable; a ragged frame reaching the
// matcher would otherwise take down the worker.
func validateExemplars(exemplars [][][]float64) error {
	for i, ex := range exemplars {
		if len(ex) == 0 {
			return fmt.Errorf("exemplar %d has no frames", i)
		}
		width := len(ex[0])
		if width == 0 {
			return fmt.Errorf("exemplar %d has an empty frame", i)
		}
		for j, frame := range ex {
			if len(frame) != width {
				return fmt.Errorf("exemplar %d frame %d has width %d, expected %d",
					i, j, len(frame), width)
			}
		}
	}
	return nil
}

// SaveTemplate writes one keyword's exemplars to path in the template file
// format; used by the training flow.
func SaveTemplate(path, keyword string, exemplars [][][]float64) error {
	data, err := yaml.Marshal(templateFile{Keyword: keyword, Exemplars: exemplars})
	if err != nil {
		return fmt.Errorf("failed to marshal template %s: %w", keyword, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write template %s: %w", path, err)
	}
	return nil
}
