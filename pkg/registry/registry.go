// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultPath is where worker-manager and the CLI look for the catalog.
const DefaultPath = "configs/worker-registry.json"

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the catalog sorted by task type and stamps LastUpdated.
func (c *Catalog) Save(path string, now time.Time) error {
	sort.Slice(c.Workers, func(i, j int) bool { return c.Workers[i].TaskType < c.Workers[j].TaskType })
	c.LastUpdated = now.UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (c *Catalog) Find(taskType string) (*Worker, bool) {
	for i := range c.Workers {
		if c.Workers[i].TaskType == taskType {
			return &c.Workers[i], true
		}
	}
	return nil, false
}

// SetStatus updates one worker's lifecycle status.
func (c *Catalog) SetStatus(taskType, status string) error {
	if !validStatus(status) {
		return fmt.Errorf("unknown status %q", status)
	}
	w, ok := c.Find(taskType)
	if !ok {
		return fmt.Errorf("task type %s not registered", taskType)
	}
	w.Status = status
	return nil
}

// Validate checks required fields and uniqueness of task types.
func (c *Catalog) Validate() error {
	if len(c.Workers) == 0 {
		return fmt.Errorf("registry contains no workers")
	}
	seen := make(map[string]bool, len(c.Workers))
	for _, w := range c.Workers {
		if w.TaskType == "" {
			return fmt.Errorf("worker missing taskType")
		}
		if seen[w.TaskType] {
			return fmt.Errorf("duplicate taskType: %s", w.TaskType)
		}
		seen[w.TaskType] = true

		if w.DisplayName == "" || w.Category == "" {
			return fmt.Errorf("worker %s missing displayName or category", w.TaskType)
		}
		if !validStatus(w.Status) {
			return fmt.Errorf("worker %s has unknown status %q", w.TaskType, w.Status)
		}
	}
	return nil
}

// Missing returns the task types that have no catalog entry.
func (c *Catalog) Missing(taskTypes []string) []string {
	var out []string
	for _, t := range taskTypes {
		if _, ok := c.Find(t); !ok {
			out = append(out, t)
		}
	}
	return out
}

func validStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}
