package labels

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry is the ordered list of detection classes, loaded once at
// startup and immutable for the session. Annotation class ids index
// into it.
type Registry struct {
	names []string
}

// classFileYAML mirrors the data.yaml convention used by YOLO training
// configs: a class count and an ordered name list.
type classFileYAML struct {
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// LoadRegistry reads the class list from a data.yaml file (nc + names)
// or, for any other extension, from a plain file with one class name per
// line. A missing or inconsistent class file is a fatal configuration
// error for the caller: no labeling can proceed without a valid registry.
func LoadRegistry(path string) (*Registry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAMLRegistry(path)
	default:
		return loadPlainRegistry(path)
	}
}

func loadYAMLRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read class file %s: %v", path, err)
	}

	var cf classFileYAML
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("cannot parse class file %s: %v", path, err)
	}

	if len(cf.Names) == 0 {
		return nil, fmt.Errorf("class file %s declares no class names", path)
	}
	if cf.NC != 0 && cf.NC != len(cf.Names) {
		return nil, fmt.Errorf("class file %s declares nc=%d but lists %d names", path, cf.NC, len(cf.Names))
	}

	return &Registry{names: cf.Names}, nil
}

func loadPlainRegistry(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read class file %s: %v", path, err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read class file %s: %v", path, err)
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("class file %s declares no class names", path)
	}

	return &Registry{names: names}, nil
}

// Len returns the number of classes (nc)
func (r *Registry) Len() int {
	return len(r.names)
}

// Valid reports whether id is a usable class index
func (r *Registry) Valid(id int) bool {
	return id >= 0 && id < len(r.names)
}

// Name returns the class name for an id
func (r *Registry) Name(id int) (string, bool) {
	if !r.Valid(id) {
		return "", false
	}
	return r.names[id], true
}

// Names returns a copy of the ordered class list
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
