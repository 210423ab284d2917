package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxFileBytes = 1 << 20
	maxNesting   = 32
	maxEnvBytes  = 8 << 10
)

// checkPath accepts JSON and YAML files. Relative paths may not leave the
// working directory.
func checkPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return fmt.Errorf("config %s: want .json, .yaml or .yml", path)
	}
	if filepath.IsAbs(path) {
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	rel, err := filepath.Rel(cwd, filepath.Join(cwd, path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("config %s: outside working directory", path)
	}
	return nil
}

// readConfigFile reads at most maxFileBytes from a regular file.
func readConfigFile(path string) ([]byte, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config %s is not a regular file", path)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > maxFileBytes {
		return nil, fmt.Errorf("config %s exceeds %d bytes", path, maxFileBytes)
	}
	return data, nil
}

// writeConfigFile writes data readable by the owner only.
func writeConfigFile(path string, data []byte) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if len(data) > maxFileBytes {
		return fmt.Errorf("config %s exceeds %d bytes", path, maxFileBytes)
	}
	return os.WriteFile(path, data, 0o600)
}

// checkNesting walks the JSON token stream and rejects documents nested
// deeper than maxNesting.
func checkNesting(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		switch delim {
		case '{', '[':
			depth++
			if depth > maxNesting {
				return fmt.Errorf("nested deeper than %d levels", maxNesting)
			}
		case '}', ']':
			depth--
		}
	}
}

func checkEnvValue(key, value string) error {
	if len(value) > maxEnvBytes {
		return fmt.Errorf("%s: value longer than %d bytes", key, maxEnvBytes)
	}
	if strings.IndexByte(value, 0) >= 0 {
		return fmt.Errorf("%s: value contains a NUL byte", key)
	}
	return nil
}
