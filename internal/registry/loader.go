package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

// LoadDir scans a directory for *.gguf files and builds the model registry.
// The id is the filename without extension, lowercased; it doubles as the
// task identifier of the worker slot serving the model. Quantization is
// inferred from a trailing Q-tag in the filename when present.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		models = append(models, types.Model{
			ID:    strings.ToLower(stem),
			Name:  stem,
			Path:  filepath.Join(abs, name),
			Quant: quantOf(stem),
		})
	}
	return models, nil
}

// quantOf pulls a quantization tag like Q4_K_M or Q8_0 out of a filename stem.
func quantOf(stem string) string {
	parts := strings.FieldsFunc(stem, func(r rune) bool { return r == '.' || r == '-' })
	for i := len(parts) - 1; i >= 0; i-- {
		p := strings.ToUpper(parts[i])
		if len(p) >= 2 && p[0] == 'Q' && p[1] >= '0' && p[1] <= '9' {
			return p
		}
	}
	return ""
}
