package systems

import (
	"errors"
	"time"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/models"
)

var ErrUnknownSystem = errors.New("unknown system")

// System owns the components of one kind and updates them every tick.
// Systems are driven from the engine goroutine only.
type System interface {
	// Identity

	Name() string

	// Lifecycle

	Configure(config *document.Node) error
	Unload()

	// Components

	CreateComponent(owner *models.Entity, node *document.Node) (models.Component, error)
	RemoveComponent(c models.Component) bool
	Count() int

	// Execution

	Update(dt time.Duration) error
}
