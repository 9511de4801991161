package recap

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveJSON writes v to path as pretty-printed JSON, creating parent
// directories as needed. Non-ASCII text is written verbatim.
func SaveJSON(path string, v any) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	err = enc.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	err = os.WriteFile(path, buf.Bytes(), 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// LoadJSON reads path and unmarshals it into v.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// SaveJSONL writes items to path as JSON Lines, one compact record per line.
func SaveJSONL[T any](path string, items []T) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, item := range items {
		err = enc.Encode(item)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	}

	err = os.WriteFile(path, buf.Bytes(), 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// LoadJSONL reads path as JSON Lines, skipping blank lines.
func LoadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var items []T

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var item T

		err = json.Unmarshal(line, &item)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		items = append(items, item)
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	return items, nil
}
