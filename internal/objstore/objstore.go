// Package objstore provides the artifact blob store behind a narrow
// key/value contract.
package objstore

import "context"

// ObjectInfo identifies one stored object and its authoritative size.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ListPage is one page of a prefix listing.
type ListPage struct {
	Objects []ObjectInfo
	// NextToken resumes the listing; empty when exhausted.
	NextToken string
	HasMore   bool
}

// Store is the object storage contract the archive layers consume.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string, limit int, token string) (ListPage, error)
	// PublicURL resolves a key to its externally reachable URL.
	PublicURL(key string) string
}
