/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/workspace/datastore/testmodels"
	wserrors "github.com/suparena/workspace/errors"
	"github.com/suparena/workspace/partition"
	"github.com/suparena/workspace/registry"
	"github.com/suparena/workspace/storagemodels"
)

// fakeClient is an in-memory table that understands the GSI1 key conditions
// built by Store.
type fakeClient struct {
	mu         sync.Mutex
	items      map[string]map[string]types.AttributeValue
	queries    int
	queryErrs  []error
	putErr     error
	deleteErrs int
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func strAttr(av map[string]types.AttributeValue, name string) string {
	if s, ok := av[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func rowKey(av map[string]types.AttributeValue) string {
	return strAttr(av, "PK") + "|" + strAttr(av, "SK")
}

func (f *fakeClient) PutItem(ctx context.Context, in *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[rowKey(in.Item)] = in.Item
	return &sdk.PutItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(ctx context.Context, in *sdk.DeleteItemInput, _ ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErrs > 0 {
		f.deleteErrs--
		return nil, &types.ConditionalCheckFailedException{}
	}
	delete(f.items, rowKey(in.Key))
	return &sdk.DeleteItemOutput{}, nil
}

func (f *fakeClient) Query(ctx context.Context, in *sdk.QueryInput, _ ...func(*sdk.Options)) (*sdk.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if len(f.queryErrs) > 0 {
		err := f.queryErrs[0]
		f.queryErrs = f.queryErrs[1:]
		return nil, err
	}

	pk := strAttr(in.ExpressionAttributeValues, ":pk")
	prefix := strAttr(in.ExpressionAttributeValues, ":sk")

	var keys []string
	for k, av := range f.items {
		if strAttr(av, "PK1") == pk && strings.HasPrefix(strAttr(av, "SK1"), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if in.ExclusiveStartKey != nil {
		start := rowKey(in.ExclusiveStartKey)
		i := sort.SearchStrings(keys, start)
		if i < len(keys) && keys[i] == start {
			i++
		}
		keys = keys[i:]
	}

	out := &sdk.QueryOutput{}
	limit := len(keys)
	if in.Limit != nil && int(*in.Limit) < limit {
		limit = int(*in.Limit)
	}
	for _, k := range keys[:limit] {
		out.Items = append(out.Items, f.items[k])
	}
	if limit < len(keys) {
		out.LastEvaluatedKey = primaryKey(f.items[keys[limit-1]])
	}
	return out, nil
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClient, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	require.NoError(t, testmodels.Register(reg))
	client := newFakeClient()
	return NewStore(client, "test-table", reg, opts...), client, reg
}

func TestExpandMacros(t *testing.T) {
	av := map[string]types.AttributeValue{
		"ID":     &types.AttributeValueMemberS{Value: "p1"},
		"Rating": &types.AttributeValueMemberN{Value: "1500"},
		"Active": &types.AttributeValueMemberBOOL{Value: true},
		"Tags":   &types.AttributeValueMemberSS{Value: []string{"a"}},
	}
	got := expandMacros(map[string]string{
		"PK":     "PLAYER#{ID}",
		"SK":     "RATING#{Rating}#{Active}",
		"GSI2PK": "{Tags}{Missing}",
	}, av)

	assert.Equal(t, "PLAYER#p1", got["PK"])
	assert.Equal(t, "RATING#1500#true", got["SK"])
	assert.Equal(t, "", got["GSI2PK"])
}

func TestStoreBuffersUntilCommit(t *testing.T) {
	ctx := context.Background()
	store, client, _ := newTestStore(t)

	require.NoError(t, store.UpdateItems(ctx, &testmodels.Player{ID: "p1", SystemID: "rs1", Name: "Ann"}))
	assert.Equal(t, 1, store.Pending())
	assert.Empty(t, client.items)

	require.NoError(t, store.Commit(ctx, storagemodels.WithOrigin("test")))
	assert.Equal(t, 0, store.Pending())
	require.Len(t, client.items, 1)

	row := client.items["PLAYER#p1|RS#rs1"]
	require.NotNil(t, row)
	assert.Equal(t, "Player", strAttr(row, AttrEntityType))
	assert.Equal(t, "rs1", strAttr(row, AttrPartitionKey))
	assert.Equal(t, "Player", strAttr(row, "PK1"))
	assert.Equal(t, "rs1#p1", strAttr(row, "SK1"))
}

func TestStoreDefaultKeys(t *testing.T) {
	ctx := context.Background()
	store, client, _ := newTestStore(t)

	require.NoError(t, store.UpdateItems(ctx, []*testmodels.Team{{ID: "t1", SystemID: "rs1"}}))
	require.NoError(t, store.Commit(ctx))

	row := client.items["Team#t1|Team#t1"]
	require.NotNil(t, row)
	assert.Equal(t, "rs1#t1", strAttr(row, "SK1"))
}

func TestStorePartitionFromContext(t *testing.T) {
	ctx := context.Background()
	store, client, _ := newTestStore(t)

	err := store.UpdateItems(ctx, &testmodels.Player{ID: "p1"})
	assert.True(t, wserrors.IsPartitionConfiguration(err))
	assert.Equal(t, 0, store.Pending())

	require.NoError(t, store.UpdateItems(partition.WithKey(ctx, testmodels.RatingPartition, "rs9"), &testmodels.Player{ID: "p1"}))
	require.NoError(t, store.Commit(ctx))
	assert.Contains(t, client.items, "PLAYER#p1|RS#rs9")
}

func TestStoreQuery(t *testing.T) {
	ctx := context.Background()
	store, _, reg := newTestStore(t)

	require.NoError(t, store.UpdateItems(ctx, []any{
		&testmodels.Player{ID: "p1", SystemID: "rs1", Name: "Ann", Rating: 1500},
		&testmodels.Player{ID: "p2", SystemID: "rs2", Name: "Bob"},
		&testmodels.Team{ID: "t1", SystemID: "rs1", Members: []string{"p1"}},
	}))
	require.NoError(t, store.Commit(ctx))

	t.Run("AllOfKind", func(t *testing.T) {
		kind, _ := registry.KindOf[*testmodels.Player](reg)
		items, err := store.Query(ctx, kind)
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("Descendants", func(t *testing.T) {
		kind, _ := registry.KindOf[testmodels.Participant](reg)
		items, err := store.Query(ctx, kind)
		require.NoError(t, err)
		assert.Len(t, items, 3)
		for _, item := range items {
			assert.Implements(t, (*testmodels.Participant)(nil), item)
		}
	})

	t.Run("Partition", func(t *testing.T) {
		kind, _ := registry.KindOf[*testmodels.Player](reg)
		items, err := store.QueryPartition(ctx, kind, testmodels.RatingPartition, "rs1")
		require.NoError(t, err)
		require.Len(t, items, 1)
		p := items[0].(*testmodels.Player)
		assert.Equal(t, "Ann", p.Name)
		assert.Equal(t, 1500, p.Rating)
	})

	t.Run("WrongPartition", func(t *testing.T) {
		kind, _ := registry.KindOf[*testmodels.Player](reg)
		_, err := store.QueryPartition(ctx, kind, "league", "rs1")
		assert.True(t, wserrors.IsValidationError(err))
	})
}

func TestStoreQueryPaging(t *testing.T) {
	ctx := context.Background()
	var pages []int
	store, _, reg := newTestStore(t, WithFetchOptions(
		storagemodels.WithPageSize(1),
		storagemodels.WithProgressHandler(func(p storagemodels.FetchProgress) {
			pages = append(pages, p.PagesProcessed)
		}),
	))

	require.NoError(t, store.UpdateItems(ctx, []*testmodels.Player{
		{ID: "p1", SystemID: "rs1"},
		{ID: "p2", SystemID: "rs1"},
		{ID: "p3", SystemID: "rs1"},
	}))
	require.NoError(t, store.Commit(ctx))

	kind, _ := registry.KindOf[*testmodels.Player](reg)
	items, err := store.Query(ctx, kind)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, []int{1, 2, 3}, pages)
}

func TestStoreQueryRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("Retryable", func(t *testing.T) {
		store, client, reg := newTestStore(t, WithFetchOptions(storagemodels.WithRetryBackoff(time.Millisecond)))
		client.queryErrs = []error{
			&types.ProvisionedThroughputExceededException{},
			&types.RequestLimitExceeded{},
		}
		kind, _ := registry.KindOf[*testmodels.Team](reg)
		_, err := store.Query(ctx, kind)
		require.NoError(t, err)
		assert.Equal(t, 3, client.queries)
	})

	t.Run("Exhausted", func(t *testing.T) {
		store, client, reg := newTestStore(t, WithFetchOptions(
			storagemodels.WithRetryBackoff(time.Millisecond),
			storagemodels.WithMaxRetries(1),
		))
		client.queryErrs = []error{&types.InternalServerError{}, &types.InternalServerError{}}
		kind, _ := registry.KindOf[*testmodels.Team](reg)
		_, err := store.Query(ctx, kind)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 1 retries")
		assert.Equal(t, 2, client.queries)
	})

	t.Run("NotRetryable", func(t *testing.T) {
		store, client, reg := newTestStore(t)
		client.queryErrs = []error{errors.New("validation exception")}
		kind, _ := registry.KindOf[*testmodels.Team](reg)
		_, err := store.Query(ctx, kind)
		require.Error(t, err)
		assert.Equal(t, 1, client.queries)
	})
}

func TestStoreCommitFailureKeepsWrites(t *testing.T) {
	ctx := context.Background()
	store, client, _ := newTestStore(t)
	client.putErr = errors.New("boom")

	require.NoError(t, store.UpdateItems(ctx, &testmodels.RatingSystem{ID: "rs1", Name: "Club"}))
	require.Error(t, store.Commit(ctx))
	assert.Equal(t, 1, store.Pending())

	client.putErr = nil
	require.NoError(t, store.Commit(ctx))
	assert.Contains(t, client.items, "RS#rs1|RS#rs1")
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, client, _ := newTestStore(t)
	rs := &testmodels.RatingSystem{ID: "rs1", Name: "Club"}

	require.NoError(t, store.UpdateItems(ctx, rs))
	require.NoError(t, store.Commit(ctx))
	require.Len(t, client.items, 1)

	client.deleteErrs = 1
	require.NoError(t, store.DeleteItems(ctx, []*testmodels.RatingSystem{rs}))
	err := store.Commit(ctx)
	assert.True(t, wserrors.IsConditionFailed(err))

	require.NoError(t, store.Commit(ctx))
	assert.Empty(t, client.items)
}

func TestStorePartitionOf(t *testing.T) {
	store, _, _ := newTestStore(t)

	name, ok := store.PartitionOf(reflect.TypeFor[*testmodels.Player]())
	assert.True(t, ok)
	assert.Equal(t, testmodels.RatingPartition, name)

	_, ok = store.PartitionOf(reflect.TypeFor[*testmodels.RatingSystem]())
	assert.False(t, ok)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&types.ProvisionedThroughputExceededException{}))
	assert.True(t, isRetryableError(&types.InternalServerError{}))
	assert.False(t, isRetryableError(errors.New("nope")))
}
