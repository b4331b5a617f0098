package systems

import (
	"fmt"
	"time"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/models"
	"github.com/zeusync/enginekit/internal/core/observability/log"
)

const (
	StatsSystem = "stats"

	// EventStatChange is fired through the owner's dispatcher whenever a
	// stat is set.
	EventStatChange = "statChange"
)

// StatEvent carries the id of the changed stat and its new value.
type StatEvent struct {
	Stat  string
	Value *document.Node
	at    time.Time
}

func (e StatEvent) Type() string         { return EventStatChange }
func (e StatEvent) Timestamp() time.Time { return e.at }
func (e StatEvent) Data() any            { return e }

// StatsComponent keeps arbitrary stats as a document.
type StatsComponent struct {
	models.BaseComponent

	stats *document.Node
}

// Read merges node into the current stats.
func (c *StatsComponent) Read(node *document.Node) error {
	if c.stats == nil {
		c.stats = document.NewObject()
	}
	if node.IsNull() {
		return nil
	}
	if !node.IsObject() {
		return fmt.Errorf("stats must be an object, got %s", node.Kind())
	}
	document.MergeInto(c.stats, node)
	return nil
}

func (c *StatsComponent) Dump(node *document.Node) error {
	if c.stats == nil {
		return nil
	}
	document.MergeInto(node, c.stats)
	return nil
}

// Data returns the stats document. Changes made through it fire no events.
func (c *StatsComponent) Data() *document.Node { return c.stats }

func (c *StatsComponent) Has(key string) bool {
	return c.stats.Find(key) != nil
}

// Float returns the stat as a float or def.
func (c *StatsComponent) Float(key string, def float64) float64 {
	return document.GetOr(c.stats, key, def)
}

// Get returns the raw stat node.
func (c *StatsComponent) Get(key string) (*document.Node, bool) {
	n := c.stats.Find(key)
	return n, n != nil
}

// Set stores value under key and fires EventStatChange.
func (c *StatsComponent) Set(key string, value any) error {
	if c.stats == nil {
		c.stats = document.NewObject()
	}
	if err := c.stats.Replace(key, value); err != nil {
		return err
	}
	return c.Fire(StatEvent{Stat: key, Value: c.stats.Find(key).Clone(), at: time.Now()})
}

// Increase adds n to a numeric stat, treating a missing stat as 0.
func (c *StatsComponent) Increase(key string, n float64) (float64, error) {
	v := c.Float(key, 0) + n
	return v, c.Set(key, v)
}

// Stats is the system holding StatsComponent instances.
type Stats struct {
	*Storage[StatsComponent, *StatsComponent]
}

func NewStats(logger log.Log) *Stats {
	return &Stats{
		Storage: NewStorage[StatsComponent](StatsSystem, Hooks[*StatsComponent]{
			Init: func(c *StatsComponent) { c.stats = document.NewObject() },
		}, logger),
	}
}
