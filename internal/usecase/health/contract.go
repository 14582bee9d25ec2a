package health

import "context"

// StoragePinger checks record storage availability.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// RewriteChecker checks the query rewrite provider.
type RewriteChecker interface {
	HealthCheck(ctx context.Context) error
}
