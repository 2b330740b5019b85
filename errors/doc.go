/*
Package errors provides semantic error types for the workspace library.

The package defines common error scenarios with specific types that can be
checked using the standard errors.Is() function or the provided helper functions.

Common Errors:

	var (
	    ErrNotFound                 = errors.New("entity not found")
	    ErrAlreadyExists            = errors.New("entity already exists")
	    ErrInvalidInput             = errors.New("invalid input")
	    ErrUnknownKind              = errors.New("unknown kind")
	    ErrPartitionConfiguration   = errors.New("partition configuration error")
	    ErrCrossPartitionResolution = errors.New("cross partition resolution failed")
	)

Usage:

	// A partitioned kind written without a key fails synchronously
	err := workspace.UpdateOne(ctx, ws, Policy{ID: "p-1"})
	if errors.IsPartitionConfiguration(err) {
	    // set the ambient partition or an item-level key
	}

	// Commit aborts on the first partition that cannot be resolved
	if err := ws.CommitTo(ctx, target); errors.IsCrossPartitionResolution(err) {
	    // chunks forwarded before the failure are not rolled back
	}

The error types implement the error interface and support wrapping,
making them compatible with Go's standard error handling patterns.
*/
package errors
