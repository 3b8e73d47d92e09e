package opt

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the root of every error that aborts a match before any
// solver work begins. Test with errors.Is.
var ErrConfiguration = errors.New("configuration error")

var (
	ErrNoDepots          = fmt.Errorf("%w: graph has no depots", ErrConfiguration)
	ErrInvalidTimeWindow = fmt.Errorf("%w: delivery request time window ends before it starts", ErrConfiguration)
	ErrUnknownDock       = fmt.Errorf("%w: vehicle start dock is not a depot of the graph", ErrConfiguration)
	ErrNegativeReload    = fmt.Errorf("%w: reload_per_vehicle must be >= 0", ErrConfiguration)
	ErrUnknownStrategy   = fmt.Errorf("%w: unknown first solution strategy", ErrConfiguration)
	ErrUnknownSolver     = fmt.Errorf("%w: unknown solver name", ErrConfiguration)
	ErrInvalidConfig     = fmt.Errorf("%w: invalid match config", ErrConfiguration)
	ErrDuplicateVehicle  = fmt.Errorf("%w: duplicate vehicle id", ErrConfiguration)
	ErrMissingZeroTime   = fmt.Errorf("%w: zero time is unset in both config and graph", ErrConfiguration)
)
