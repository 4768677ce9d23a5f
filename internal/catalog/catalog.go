// Package catalog maps task names to ordered lists of small steps.
package catalog

import (
	"slices"
	"strings"
	"sync"

	"github.com/ashureev/cognify/internal/domain"
)

// GentlePrefix is prepended to the synthesized step emitted before each
// authored step under gentle pacing.
const GentlePrefix = "Prepare for: "

var defaultTasks = map[string][]string{
	"laundry":   {"Gather clothes", "Sort by color", "Put in machine", "Add soap", "Start machine"},
	"email":     {"Open inbox", "Select one email", "Read content", "Draft brief reply", "Press send"},
	"hydration": {"Find a glass", "Go to the tap", "Fill glass with water", "Drink the whole glass"},
}

var defaultFallback = []string{
	"Prepare your space",
	"Focus on the first physical movement",
	"Complete the middle part",
	"Check your progress",
	"Finalize and tidy up",
}

// Catalog is a task-name to steps table with a generic fallback. It is safe
// for concurrent use; Replace swaps the whole table atomically.
type Catalog struct {
	mu       sync.RWMutex
	tasks    map[string][]string
	fallback []string
}

// New returns a catalog holding the built-in tasks.
func New() *Catalog {
	c := &Catalog{}
	c.Replace(defaultTasks, defaultFallback)
	return c
}

var std = New()

// Default returns the process-wide catalog.
func Default() *Catalog { return std }

// Key normalizes a task name for lookup.
func Key(task string) string {
	return strings.ToLower(strings.TrimSpace(task))
}

// Replace installs a new table. Keys are normalized; slices are copied.
func (c *Catalog) Replace(tasks map[string][]string, fallback []string) {
	next := make(map[string][]string, len(tasks))
	for name, steps := range tasks {
		next[Key(name)] = append([]string(nil), steps...)
	}
	fb := append([]string(nil), fallback...)

	c.mu.Lock()
	c.tasks = next
	c.fallback = fb
	c.mu.Unlock()
}

// Names returns the known task keys in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tasks))
	for name := range c.tasks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the authored steps for task and whether the task is known.
// Unknown tasks get the fallback list.
func (c *Catalog) Lookup(task string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if steps, ok := c.tasks[Key(task)]; ok {
		return append([]string(nil), steps...), true
	}
	return append([]string(nil), c.fallback...), false
}

// Decompose returns the ordered plan for task. Gentle pacing emits a
// "Prepare for:" step ahead of every authored step. The result is a fresh
// slice the caller owns.
func (c *Catalog) Decompose(task string, pacing domain.Pacing) []string {
	base, _ := c.Lookup(task)
	if pacing != domain.PacingGentle {
		return base
	}
	steps := make([]string, 0, 2*len(base))
	for _, s := range base {
		steps = append(steps, GentlePrefix+s, s)
	}
	return steps
}

// Decompose runs Decompose on the default catalog.
func Decompose(task string, pacing domain.Pacing) []string {
	return std.Decompose(task, pacing)
}
