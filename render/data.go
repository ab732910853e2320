package render

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// LoadData reads a template data file. YAML (.yml, .yaml) and JSON with
// comments (.json, .jsonc) are supported; the top level must be a mapping.
func LoadData(fs afero.Fs, path string) (map[string]any, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading data file: %w", err)
	}

	data := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(raw, &data)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(raw), &data)
	default:
		return nil, fmt.Errorf("data file %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing data file %s: %w", path, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// mergeData copies src into dst; later files win key by key.
func mergeData(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
