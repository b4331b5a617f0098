package systems

import (
	"math"
	"time"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/fields"
	"github.com/zeusync/enginekit/internal/core/models"
	"github.com/zeusync/enginekit/internal/core/observability/log"
)

const (
	MovementSystem = "movement"

	EventDestinationReached = "destinationReached"
)

// MovementEvent is fired when a component arrives at its target.
type MovementEvent struct {
	Position fields.Vector3
	at       time.Time
}

func (e MovementEvent) Type() string         { return EventDestinationReached }
func (e MovementEvent) Timestamp() time.Time { return e.at }
func (e MovementEvent) Data() any            { return e }

// MovementComponent moves its owner towards a target point at a fixed speed.
type MovementComponent struct {
	models.BaseComponent

	Speed          float64
	MoveAnimation  string
	AnimSpeedRatio float64
	Color          fields.Color
	Direction      fields.Vector3
	Turn           fields.Degree
	Position       fields.Vector3

	target    *fields.Vector3
	travelled float64
}

func (c *MovementComponent) bind() {
	p := &c.Properties
	fields.Bind(p, "position", &c.Position, fields.Optional, fields.Priority(-1))
	fields.Bind(p, "speed", &c.Speed, fields.Optional)
	fields.Bind(p, "moveAnimation", &c.MoveAnimation, fields.Optional)
	fields.Bind(p, "animSpeedRatio", &c.AnimSpeedRatio, fields.Optional)
	fields.Bind(p, "color", &c.Color, fields.Optional)
	fields.Bind(p, "direction", &c.Direction, fields.Optional)
	fields.Bind(p, "turn", &c.Turn, fields.Optional)
	fields.BindSetter(p, "target", c.MoveTo, fields.Optional)
	fields.BindGetter(p, "travelled", c.Travelled)
}

// MoveTo sets a new destination.
func (c *MovementComponent) MoveTo(target fields.Vector3) {
	c.target = &target
}

// Target returns the current destination, if any.
func (c *MovementComponent) Target() (fields.Vector3, bool) {
	if c.target == nil {
		return fields.Vector3{}, false
	}
	return *c.target, true
}

// Travelled is the distance covered since the component was created.
func (c *MovementComponent) Travelled() float64 { return c.travelled }

// Moving reports whether the component has a target and a non-zero speed.
func (c *MovementComponent) Moving() bool {
	return c.target != nil && c.Speed > 0
}

// AnimationSpeed is the playback speed for MoveAnimation.
func (c *MovementComponent) AnimationSpeed() float64 {
	return c.Speed * c.AnimSpeedRatio
}

func (c *MovementComponent) step(dt time.Duration) error {
	if !c.Moving() {
		return nil
	}

	dx := c.target.X - c.Position.X
	dy := c.target.Y - c.Position.Y
	dz := c.target.Z - c.Position.Z
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	step := c.Speed * dt.Seconds()

	if dist <= step {
		c.Position = *c.target
		c.travelled += dist
		c.target = nil
		return c.Fire(MovementEvent{Position: c.Position, at: time.Now()})
	}

	c.Direction = fields.Vector3{X: dx / dist, Y: dy / dist, Z: dz / dist}
	c.Position = fields.Vector3{
		X: c.Position.X + c.Direction.X*step,
		Y: c.Position.Y + c.Direction.Y*step,
		Z: c.Position.Z + c.Direction.Z*step,
	}
	c.travelled += step
	return nil
}

// Movement is the system holding MovementComponent instances. Its
// configuration may set "speed" and "animSpeedRatio" defaults.
type Movement struct {
	*Storage[MovementComponent, *MovementComponent]

	defaultSpeed float64
	defaultRatio float64
}

func NewMovement(logger log.Log) *Movement {
	m := &Movement{defaultRatio: 1}
	m.Storage = NewStorage[MovementComponent](MovementSystem, Hooks[*MovementComponent]{
		Init: (*MovementComponent).bind,
		Prepare: func(c *MovementComponent) error {
			c.Speed = m.defaultSpeed
			c.AnimSpeedRatio = m.defaultRatio
			return nil
		},
		Update: func(c *MovementComponent, dt time.Duration) error {
			return c.step(dt)
		},
		Configure: func(config *document.Node) error {
			m.defaultSpeed = document.GetOr(config, "speed", 0.0)
			m.defaultRatio = document.GetOr(config, "animSpeedRatio", 1.0)
			return nil
		},
	}, logger)
	return m
}
