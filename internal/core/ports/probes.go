package ports

//go:generate mockgen -source=probes.go -destination=mocks/probes_mock.go -package=mocks

import "context"

// HealthChecker is one dependency probed by GET /health: the ledger store,
// and Redis when configured.
type HealthChecker interface {
	// Ping returns nil when the dependency can serve ledger traffic.
	Ping(ctx context.Context) error
	// Name is the key the probe is reported under.
	Name() string
}
