/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/workspace/storagemodels"
)

// fetchAll pages through a query and returns every raw item
func (s *Store) fetchAll(ctx context.Context, params *storagemodels.QueryParams) ([]map[string]types.AttributeValue, error) {
	options := s.fetch
	startTime := time.Now()
	var itemsProcessed int64
	pageNumber := 0

	reportProgress := func(lastKey map[string]types.AttributeValue) {
		if options.ProgressHandler != nil {
			options.ProgressHandler(storagemodels.FetchProgress{
				ItemsProcessed: itemsProcessed,
				PagesProcessed: pageNumber,
				LastKey:        lastKey,
				StartTime:      startTime,
			})
		}
	}

	input := &sdk.QueryInput{
		TableName:                 &params.TableName,
		KeyConditionExpression:    &params.KeyConditionExpression,
		ExpressionAttributeValues: params.ExpressionAttributeValues,
		FilterExpression:          params.FilterExpression,
		IndexName:                 params.IndexName,
		Limit:                     params.Limit,
		ExclusiveStartKey:         params.ExclusiveStartKey,
		ScanIndexForward:          params.ScanIndexForward,
	}
	if input.Limit == nil && options.PageSize > 0 {
		input.Limit = aws.Int32(options.PageSize)
	}

	var items []map[string]types.AttributeValue
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := s.queryWithRetry(ctx, input, options)
		if err != nil {
			return nil, err
		}
		pageNumber++
		itemsProcessed += int64(len(out.Items))
		items = append(items, out.Items...)
		reportProgress(out.LastEvaluatedKey)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	s.logger.DebugContext(ctx, "query finished",
		"table", params.TableName,
		"items", itemsProcessed,
		"pages", pageNumber,
		"duration", time.Since(startTime),
	)
	return items, nil
}

// queryWithRetry executes a query with configurable retry logic
func (s *Store) queryWithRetry(ctx context.Context, input *sdk.QueryInput, options storagemodels.FetchOptions) (*sdk.QueryOutput, error) {
	var lastErr error

	for attempt := 0; attempt <= options.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := s.client.Query(ctx, input)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, err
		}

		// Don't sleep after last attempt
		if attempt < options.MaxRetries {
			s.logger.WarnContext(ctx, "retrying query",
				"attempt", attempt+1,
				"error", err,
			)
			backoff := time.Duration(attempt+1) * options.RetryBackoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("query failed after %d retries: %w", options.MaxRetries, lastErr)
}

// isRetryableError determines if a DynamoDB error is retryable
func isRetryableError(err error) bool {
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	if errors.As(err, &throughput) || errors.As(err, &limit) || errors.As(err, &internal) {
		return true
	}

	var retryable interface{ IsRetryable() bool }
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}
