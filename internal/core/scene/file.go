package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const FileVersion = 1

// File is the on-disk form of a scene. YAML and JSON share the layout.
type File struct {
	Version  int          `json:"version" yaml:"version"`
	Entities []EntityData `json:"entities" yaml:"entities"`
}

type EntityData struct {
	UUID       string          `json:"uuid" yaml:"uuid"`
	Components []ComponentData `json:"components" yaml:"components"`
}

type ComponentData struct {
	Name  string `json:"name" yaml:"name"`
	Props Props  `json:"props" yaml:"props"`
}

// Parse reads a scene in YAML or JSON form.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	if f.Version == 0 {
		f.Version = FileVersion
	}
	if f.Version != FileVersion {
		return nil, fmt.Errorf("parse scene: unsupported version %d", f.Version)
	}
	return &f, nil
}

func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func (f *File) MarshalYAMLBytes() ([]byte, error) {
	return yaml.Marshal(f)
}

func (f *File) MarshalJSONBytes() ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}

// WriteFile stores f as JSON when path ends in .json and as YAML otherwise.
func (f *File) WriteFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = f.MarshalJSONBytes()
	} else {
		data, err = f.MarshalYAMLBytes()
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
