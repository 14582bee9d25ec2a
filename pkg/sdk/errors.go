package fallsearch

import "github.com/kailas-cloud/fallsearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrUnknownRecordType = domain.ErrUnknownRecordType
	ErrInvalidQuery      = domain.ErrInvalidQuery
	ErrInvalidSchema     = domain.ErrInvalidSchema
	ErrRewriteFailed     = domain.ErrRewriteFailed
	ErrRateLimited       = domain.ErrRateLimited
	ErrQuotaExceeded     = domain.ErrQuotaExceeded
)
