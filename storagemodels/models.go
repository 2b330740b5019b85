/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/suparena/workspace/registry"
)

// ChangeType tells whether a chunk carries upserts or removals.
type ChangeType string

const (
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// Chunk is a group of pending items of one kind for one partition,
// accumulated since the last commit.
type Chunk struct {
	// ID identifies the chunk in logs and sink records.
	ID strfmt.UUID
	// Type is ChangeModified or ChangeDeleted.
	Type ChangeType
	// Kind is the runtime kind of every item in the chunk.
	Kind *registry.Kind
	// PartitionName is empty for unpartitioned kinds.
	PartitionName string
	// PartitionKey is nil for unpartitioned kinds.
	PartitionKey any
	// Items holds the pending values.
	Items []any
	// Snapshot marks a modified chunk whose partition was replaced rather
	// than merged since the last commit.
	Snapshot bool
	// RecordedAt is when the first item of the chunk was recorded.
	RecordedAt strfmt.DateTime
}

// NewChunk creates an empty chunk stamped with a fresh id and the current time.
func NewChunk(typ ChangeType, kind *registry.Kind, partitionName string, partitionKey any) *Chunk {
	return &Chunk{
		ID:            strfmt.UUID(uuid.NewString()),
		Type:          typ,
		Kind:          kind,
		PartitionName: partitionName,
		PartitionKey:  partitionKey,
		RecordedAt:    strfmt.DateTime(time.Now().UTC()),
	}
}

// Partitioned reports whether the chunk targets a named partition.
func (c *Chunk) Partitioned() bool {
	return c.PartitionName != ""
}

// QueryParams defines parameters for a DynamoDB Query operation.
type QueryParams struct {
	// TableName is the DynamoDB table name.
	TableName string
	// KeyConditionExpression is the primary condition for the query.
	KeyConditionExpression string
	// FilterExpression is an optional filter expression.
	FilterExpression *string
	// ExpressionAttributeValues contains the values for expression placeholders.
	ExpressionAttributeValues map[string]types.AttributeValue
	// IndexName is optional if you wish to query a secondary index.
	IndexName *string
	// Limit defines an optional limit per query page.
	Limit *int32
	// ExclusiveStartKey for pagination
	ExclusiveStartKey map[string]types.AttributeValue
	// ScanIndexForward specifies the order for index traversal.
	ScanIndexForward *bool
}
