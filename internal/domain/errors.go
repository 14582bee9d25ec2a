package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrUnknownRecordType signals a record type that is not registered.
	ErrUnknownRecordType = errors.New("unknown record type")
	// ErrInvalidQuery signals a query payload that cannot be decoded into a tree.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidSchema signals an invalid record type definition.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrRewriteFailed signals a query rewrite provider failure.
	ErrRewriteFailed = errors.New("query rewrite failed")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded signals an exhausted rewrite provider quota.
	ErrQuotaExceeded = errors.New("rewrite quota exceeded")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)
