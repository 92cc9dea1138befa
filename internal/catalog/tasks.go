package catalog

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tasks.yaml
var tasksYAML []byte

//go:embed all:fixtures
var fixtures embed.FS

var ErrUnknownTask = errors.New("unknown task")

type RubricEntry struct {
	Dimension Dimension `yaml:"dimension" json:"dimension"`
	Guidance  string    `yaml:"guidance" json:"guidance"`
}

type ContextFile struct {
	Path    string `yaml:"path" json:"path"`
	Notes   string `yaml:"notes" json:"notes,omitempty"`
	Content string `yaml:"-" json:"content"`
}

// Task is an immutable coding-agent task definition.
type Task struct {
	ID               string        `yaml:"id" json:"id"`
	Title            string        `yaml:"title" json:"title"`
	Category         string        `yaml:"category" json:"category"`
	Difficulty       string        `yaml:"difficulty" json:"difficulty"`
	ProductQuestion  string        `yaml:"product_question" json:"productQuestion"`
	Prompt           string        `yaml:"prompt" json:"prompt"`
	ExpectedBehavior string        `yaml:"expected_behavior" json:"expectedBehavior"`
	ContextFiles     []ContextFile `yaml:"context_files" json:"contextFiles"`
	Rubric           []RubricEntry `yaml:"rubric" json:"rubric"`
	TestCases        []string      `yaml:"test_cases" json:"testCases"`
	DefaultWeights   Weights       `yaml:"default_weights" json:"defaultWeights"`
}

// HasDimension reports whether the task rubric scores d.
func (t *Task) HasDimension(d Dimension) bool {
	for _, r := range t.Rubric {
		if r.Dimension == d {
			return true
		}
	}
	return false
}

type Catalog struct {
	tasks []Task
	byID  map[string]*Task
}

type catalogFile struct {
	Rubric []RubricEntry `yaml:"rubric"`
	Tasks  []Task        `yaml:"tasks"`
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the built-in task catalog, parsed once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(tasksYAML)
	})
	return defaultCat, defaultErr
}

// Parse builds a catalog from YAML, resolving context files against the
// embedded fixtures.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing task catalog: %w", err)
	}
	c := &Catalog{
		tasks: make([]Task, 0, len(f.Tasks)),
		byID:  make(map[string]*Task, len(f.Tasks)),
	}
	for _, t := range f.Tasks {
		if len(t.Rubric) == 0 {
			t.Rubric = append([]RubricEntry(nil), f.Rubric...)
		}
		if err := resolveTask(&t); err != nil {
			return nil, fmt.Errorf("task %q: %w", t.ID, err)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("task %q: duplicate id", t.ID)
		}
		c.byID[t.ID] = nil
		c.tasks = append(c.tasks, t)
	}
	for i := range c.tasks {
		c.byID[c.tasks[i].ID] = &c.tasks[i]
	}
	return c, nil
}

func resolveTask(t *Task) error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	seen := make(map[Dimension]bool, len(t.Rubric))
	for _, r := range t.Rubric {
		if !r.Dimension.Valid() {
			return fmt.Errorf("rubric: unknown dimension %q", r.Dimension)
		}
		if seen[r.Dimension] {
			return fmt.Errorf("rubric: dimension %q listed twice", r.Dimension)
		}
		seen[r.Dimension] = true
	}
	for d := range t.DefaultWeights {
		if !d.Valid() {
			return fmt.Errorf("default_weights: unknown dimension %q", d)
		}
	}
	for i := range t.ContextFiles {
		cf := &t.ContextFiles[i]
		data, err := fixtures.ReadFile(path.Join("fixtures", cf.Path))
		if err != nil {
			return fmt.Errorf("context file %s: %w", cf.Path, err)
		}
		cf.Content = string(data)
	}
	return nil
}

// Task looks up a task by id.
func (c *Catalog) Task(id string) (*Task, error) {
	t, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return t, nil
}

// Tasks returns all tasks in catalog order.
func (c *Catalog) Tasks() []Task {
	return c.tasks
}
