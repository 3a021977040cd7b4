package template

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// templateDefinition is the YAML shape of a curated template file.
type templateDefinition struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Category    string     `yaml:"category"`
	Keywords    []string   `yaml:"keywords"`
	Complexity  string     `yaml:"complexity"`
	SuccessRate float64    `yaml:"success_rate"`
	Graph       *Workflow  `yaml:"graph"`
}

// LoadTemplateFromFile parses a single template definition from YAML.
func LoadTemplateFromFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	var def templateDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse template YAML: %w", err)
	}
	if def.ID == "" || def.Graph == nil {
		return nil, fmt.Errorf("template %s missing id or graph", path)
	}

	complexity := Complexity(def.Complexity)
	switch complexity {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
	default:
		complexity = ComplexityModerate
	}
	rate := def.SuccessRate
	if rate <= 0 || rate > 1 {
		rate = 0.9
	}

	return &Template{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Category:    def.Category,
		Keywords:    def.Keywords,
		Complexity:  complexity,
		SuccessRate: rate,
		Source:      SourceCurated,
		Graph:       def.Graph,
	}, nil
}

// LoadTemplateDir loads every .yaml/.yml template in a directory into the
// library. Parse failures are logged and skipped so one bad file never
// blocks the catalogue.
func (l *Library) LoadTemplateDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read template directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		tmpl, err := LoadTemplateFromFile(path)
		if err != nil {
			log.Printf("[Library] Skipping template %s: %v", entry.Name(), err)
			continue
		}
		l.Add(tmpl)
		loaded++
	}

	log.Printf("[Library] Loaded %d template(s) from %s", loaded, dir)
	return loaded, nil
}

// Watch reloads the template directory whenever a file changes. It returns
// a stop function. Reload failures are logged; the previous catalogue stays
// in effect.
func (l *Library) Watch(dir string) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create template watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch template directory: %w", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				log.Printf("[Library] Template change detected: %s", event.Name)
				if _, err := l.LoadTemplateDir(dir); err != nil {
					log.Printf("[Library] Reload failed: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[Library] Watcher error: %v", err)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
