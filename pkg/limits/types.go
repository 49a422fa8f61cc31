package limits

import "time"

// Admission strategies selectable at startup.
const (
	// StrategyLocal keeps bucket state in an in-process sharded map.
	StrategyLocal = "local"

	// StrategyShared keeps bucket state in a SQLite file shared by every
	// gateway process on the host.
	StrategyShared = "shared"
)

// Config specifies the admission-control layer.
type Config struct {
	// Enabled turns the limiter on. When false every check admits.
	Enabled bool

	// Strategy selects the backend: StrategyLocal or StrategyShared.
	// Any other value fails at construction.
	Strategy string

	// Capacity is the bucket burst size applied to every key.
	Capacity int64

	// FillRate is tokens replenished per second.
	FillRate float64

	// Expired is how long an idle key keeps its state before resetting
	// to a full bucket.
	Expired time.Duration

	// SharedPath is the SQLite file used by StrategyShared.
	SharedPath string
}
