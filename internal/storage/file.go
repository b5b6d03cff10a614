package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/prasenjit/go-assertive/internal/models"
	"gopkg.in/yaml.v3"
)

// seedExtensions lists the file types LoadSeedFiles understands
var seedExtensions = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// ResolveSeedFiles expands path into the seed files it names. path may be a
// single file, a directory (searched recursively) or a doublestar glob.
func ResolveSeedFiles(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	pattern := path
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return []string{path}, nil
		}
		pattern = filepath.Join(path, "**", "*")
	} else if !strings.ContainsAny(path, "*?[{") {
		return nil, fmt.Errorf("seed path %s: %w", path, err)
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid seed pattern %s: %w", pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		if seedExtensions[strings.ToLower(filepath.Ext(m))] {
			files = append(files, m)
		}
	}
	sort.Strings(files)

	return files, nil
}

// ReadSeedFile decodes one JSON or YAML file holding a single expectation or a list of them
func ReadSeedFile(path string) ([]*models.ExpectationInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	inputs, err := DecodeExpectations(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return inputs, nil
}

// DecodeExpectations decodes a JSON document holding one expectation or a list
func DecodeExpectations(data []byte) ([]*models.ExpectationInput, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var list []*models.ExpectationInput
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var single models.ExpectationInput
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []*models.ExpectationInput{&single}, nil
}

// LoadSeedFiles registers every expectation found under path into store.
// Each file is registered as one batch; loading stops at the first file
// that fails to parse or validate.
func LoadSeedFiles(store Store, path string) (int, error) {
	files, err := ResolveSeedFiles(path)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, file := range files {
		inputs, err := ReadSeedFile(file)
		if err != nil {
			return loaded, err
		}
		ids, err := store.RegisterAll(inputs)
		if err != nil {
			return loaded, fmt.Errorf("%s: %w", file, err)
		}
		loaded += len(ids)
	}

	return loaded, nil
}

// yamlToJSON converts a YAML document to JSON so the custom JSON decoders
// of the expectation types apply to YAML input as well.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	doc, err := normalizeYAML(doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func normalizeYAML(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			n, err := normalizeYAML(item)
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			n, err := normalizeYAML(item)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = n
		}
		return out, nil
	case []interface{}:
		for i, item := range val {
			n, err := normalizeYAML(item)
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil
	default:
		return val, nil
	}
}
