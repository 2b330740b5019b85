/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/workspace/errors"
	"github.com/suparena/workspace/registry"
	"github.com/suparena/workspace/storagemodels"
)

// Query returns every persisted item the kind accepts: items stored under
// the kind itself and under each of its non-abstract descendants.
func (s *Store) Query(ctx context.Context, kind *registry.Kind) ([]any, error) {
	return s.queryKinds(ctx, kind, "")
}

// QueryPartition returns the items the kind accepts within one partition.
func (s *Store) QueryPartition(ctx context.Context, kind *registry.Kind, name string, key any) ([]any, error) {
	if kind.Partitioned() && kind.Partition != name {
		return nil, errors.NewValidationError("partition", fmt.Sprintf("kind %s is partitioned by %q, not %q", kind.Name, kind.Partition, name))
	}
	return s.queryKinds(ctx, kind, fmt.Sprint(key))
}

func (s *Store) queryKinds(ctx context.Context, kind *registry.Kind, partitionKey string) ([]any, error) {
	var kinds []*registry.Kind
	if !kind.Abstract {
		kinds = append(kinds, kind)
	}
	kinds = append(kinds, s.reg.Descendants(kind.Type)...)

	var results []any
	for _, k := range kinds {
		raw, err := s.fetchAll(ctx, s.kindParams(k, partitionKey))
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", k.Name, err)
		}
		for _, item := range raw {
			obj, err := s.decode(item)
			if err != nil {
				return nil, err
			}
			results = append(results, obj)
		}
	}
	return results, nil
}

// kindParams selects one kind on GSI1, optionally narrowed to one partition.
func (s *Store) kindParams(k *registry.Kind, partitionKey string) *storagemodels.QueryParams {
	params := &storagemodels.QueryParams{
		TableName:              s.table,
		IndexName:              aws.String(s.gsi.IndexName),
		KeyConditionExpression: fmt.Sprintf("%s = :pk", s.gsi.PartitionKeyName),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: k.Name},
		},
	}
	if partitionKey != "" && k.Partitioned() {
		params.KeyConditionExpression += fmt.Sprintf(" AND begins_with(%s, :sk)", s.gsi.SortKeyName)
		params.ExpressionAttributeValues[":sk"] = &types.AttributeValueMemberS{Value: partitionKey + "#"}
	}
	return params
}

// decode uses the injected EntityType attribute to pick the registered kind
// and unmarshals the item into a fresh value of it.
func (s *Store) decode(item map[string]types.AttributeValue) (any, error) {
	var entityType string
	attr, ok := item[AttrEntityType]
	if !ok {
		return nil, fmt.Errorf("missing %s attribute in item", AttrEntityType)
	}
	if err := attributevalue.Unmarshal(attr, &entityType); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", AttrEntityType, err)
	}

	k, ok := s.reg.ByName(entityType)
	if !ok {
		return nil, errors.NewUnknownKindError(entityType)
	}
	ptr := k.New()
	if err := attributevalue.UnmarshalMap(item, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item for %s %q: %w", AttrEntityType, entityType, err)
	}
	return reflect.ValueOf(ptr).Elem().Interface(), nil
}
