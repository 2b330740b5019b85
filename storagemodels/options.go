/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UpdateOptions controls how an update is applied.
type UpdateOptions struct {
	// Snapshot replaces the contents of the requested kind's bucket instead
	// of merging into it.
	Snapshot bool
}

// UpdateOption is a functional option for updates
type UpdateOption func(*UpdateOptions)

// WithSnapshot marks the update as a snapshot write.
func WithSnapshot() UpdateOption {
	return func(o *UpdateOptions) {
		o.Snapshot = true
	}
}

// ApplyUpdateOptions folds opts into an UpdateOptions value.
func ApplyUpdateOptions(opts ...UpdateOption) UpdateOptions {
	var o UpdateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Options converts back to functional options for forwarding.
func (o UpdateOptions) Options() []UpdateOption {
	if o.Snapshot {
		return []UpdateOption{WithSnapshot()}
	}
	return nil
}

// CommitOptions controls a commit.
type CommitOptions struct {
	// Origin names the workspace or process that produced the changes.
	Origin string
}

// CommitOption is a functional option for commits
type CommitOption func(*CommitOptions)

// WithOrigin tags the commit with its origin.
func WithOrigin(origin string) CommitOption {
	return func(o *CommitOptions) {
		o.Origin = origin
	}
}

// ApplyCommitOptions folds opts into a CommitOptions value.
func ApplyCommitOptions(opts ...CommitOption) CommitOptions {
	var o CommitOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// FetchOptions configures paged reads from a source
type FetchOptions struct {
	MaxRetries      int                 // Retry attempts for transient errors (default: 3)
	RetryBackoff    time.Duration       // Backoff between retries (default: 1s)
	PageSize        int32               // Items per DynamoDB page (default: 100)
	ProgressHandler func(FetchProgress) // Optional progress callback
}

// FetchProgress tracks paged read progress
type FetchProgress struct {
	ItemsProcessed int64                           // Total items processed
	PagesProcessed int                             // Total pages processed
	LastKey        map[string]types.AttributeValue // Last evaluated key
	StartTime      time.Time                       // When the read started
}

// FetchOption is a functional option for configuring paged reads
type FetchOption func(*FetchOptions)

// DefaultFetchOptions returns default fetch options
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		MaxRetries:   3,
		RetryBackoff: time.Second,
		PageSize:     100,
	}
}

// WithMaxRetries sets the maximum retry attempts
func WithMaxRetries(retries int) FetchOption {
	return func(opts *FetchOptions) {
		opts.MaxRetries = retries
	}
}

// WithRetryBackoff sets the retry backoff duration
func WithRetryBackoff(backoff time.Duration) FetchOption {
	return func(opts *FetchOptions) {
		opts.RetryBackoff = backoff
	}
}

// WithPageSize sets the DynamoDB page size
func WithPageSize(size int32) FetchOption {
	return func(opts *FetchOptions) {
		opts.PageSize = size
	}
}

// WithProgressHandler sets a progress callback
func WithProgressHandler(handler func(FetchProgress)) FetchOption {
	return func(opts *FetchOptions) {
		opts.ProgressHandler = handler
	}
}
