/*
Package storagemodels defines the data structures shared by the workspace
core and its sinks and sources.

Key Types:

Chunk:
A group of pending items of one kind for one partition, produced by the
change scheduler and forwarded to a sink on commit:

	type Chunk struct {
	    ID            strfmt.UUID
	    Type          ChangeType // modified or deleted
	    Kind          *registry.Kind
	    PartitionName string
	    PartitionKey  any
	    Items         []any
	    RecordedAt    strfmt.DateTime
	}

UpdateOptions / CommitOptions:
Functional options accepted by Update and Commit:

	err := workspace.Update(ctx, ws, dogs, storagemodels.WithSnapshot())
	err = ws.CommitTo(ctx, sink, storagemodels.WithOrigin("import-job"))

FetchOptions:
Paging and retry behaviour for sources that read in pages:

	src := ddb.NewStore(client, table, reg,
	    ddb.WithFetchOptions(
	        storagemodels.WithPageSize(25),
	        storagemodels.WithMaxRetries(3),
	    ),
	)

QueryParams:
Parameters for a raw DynamoDB query, used by the ddb source.
*/
package storagemodels
