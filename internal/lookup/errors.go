package lookup

import "errors"

// Error classes. Every per-row failure wraps exactly one of the first three;
// ErrConfiguration is reserved for startup failures.
var (
	ErrValidation    = errors.New("validation error")
	ErrNetwork       = errors.New("network error")
	ErrParse         = errors.New("parse error")
	ErrConfiguration = errors.New("configuration error")
)

// Stage names the pipeline step an error came from.
type Stage string

// Known stages, also used as the outcome label on metrics.
const (
	StageValidation Stage = "validation"
	StageNetwork    Stage = "network"
	StageParse      Stage = "parse"
	StageUnknown    Stage = "unknown"
)

// Classify maps an error to the stage that produced it.
func Classify(err error) Stage {
	switch {
	case errors.Is(err, ErrValidation):
		return StageValidation
	case errors.Is(err, ErrNetwork):
		return StageNetwork
	case errors.Is(err, ErrParse):
		return StageParse
	default:
		return StageUnknown
	}
}
