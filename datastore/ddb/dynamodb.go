/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/workspace/datastore"
	wserrors "github.com/suparena/workspace/errors"
	"github.com/suparena/workspace/partition"
	"github.com/suparena/workspace/registry"
	"github.com/suparena/workspace/storagemodels"
)

// Attributes injected into every persisted item.
const (
	AttrEntityType   = "EntityType"
	AttrPartitionKey = "PartitionKey"
)

// Client is the subset of the DynamoDB API used by Store.
type Client interface {
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	Query(ctx context.Context, params *sdk.QueryInput, optFns ...func(*sdk.Options)) (*sdk.QueryOutput, error)
}

var _ Client = (*sdk.Client)(nil)

// ClientConfig holds what NewClient needs to reach DynamoDB.
type ClientConfig struct {
	Region    string
	Endpoint  string // optional, e.g. http://localhost:8000 for DynamoDB Local
	AccessKey string // optional; the default credential chain is used when empty
	SecretKey string
}

// NewClient initializes a DynamoDB client.
func NewClient(ctx context.Context, cfg ClientConfig) (*sdk.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(awsCfg, func(o *sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Store persists workspace items into a single DynamoDB table. It is a
// datastore.Sink that buffers writes until Commit and a
// datastore.PartitionedSource that reads through the GSI1 index.
type Store struct {
	client Client
	table  string
	reg    *registry.Registry
	logger *slog.Logger
	fetch  storagemodels.FetchOptions
	gsi    GSIConfig

	mu      sync.Mutex
	pending []writeRequest
}

var (
	_ datastore.Sink              = (*Store)(nil)
	_ datastore.PartitionedSource = (*Store)(nil)
)

// writeRequest is one buffered PutItem or DeleteItem.
type writeRequest struct {
	put  map[string]types.AttributeValue
	del  map[string]types.AttributeValue
	kind string
}

// Option configures a Store.
type Option func(*Store)

// WithFetchOptions configures paging and retries of source reads.
func WithFetchOptions(opts ...storagemodels.FetchOption) Option {
	return func(s *Store) {
		for _, opt := range opts {
			opt(&s.fetch)
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGSI overrides the index used for kind and partition reads.
func WithGSI(cfg GSIConfig) Option {
	return func(s *Store) {
		s.gsi = cfg
	}
}

// NewStore creates a Store on table for the kinds in reg.
func NewStore(client Client, table string, reg *registry.Registry, opts ...Option) *Store {
	gsi, _ := GetGSIConfig("GSI1")
	s := &Store{
		client: client,
		table:  table,
		reg:    reg,
		logger: slog.New(slog.DiscardHandler),
		fetch:  storagemodels.DefaultFetchOptions(),
		gsi:    gsi,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateItems buffers a PutItem for every item.
func (s *Store) UpdateItems(ctx context.Context, items any, opts ...storagemodels.UpdateOption) error {
	reqs := make([]writeRequest, 0)
	for _, item := range datastore.Items(items) {
		k, av, err := s.encode(ctx, item)
		if err != nil {
			return err
		}
		reqs = append(reqs, writeRequest{put: av, kind: k.Name})
	}
	s.enqueue(reqs)
	return nil
}

// DeleteItems buffers a DeleteItem for every item.
func (s *Store) DeleteItems(ctx context.Context, items any) error {
	reqs := make([]writeRequest, 0)
	for _, item := range datastore.Items(items) {
		k, av, err := s.encode(ctx, item)
		if err != nil {
			return err
		}
		reqs = append(reqs, writeRequest{del: primaryKey(av), kind: k.Name})
	}
	s.enqueue(reqs)
	return nil
}

func (s *Store) enqueue(reqs []writeRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, reqs...)
}

// Commit flushes buffered writes in order. When a write fails it and every
// later write stay buffered for the next Commit.
func (s *Store) Commit(ctx context.Context, opts ...storagemodels.CommitOption) error {
	o := storagemodels.ApplyCommitOptions(opts...)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, req := range s.pending {
		if err := s.write(ctx, req); err != nil {
			s.pending = s.pending[i:]
			s.logger.ErrorContext(ctx, "commit failed",
				"origin", o.Origin,
				"kind", req.kind,
				"flushed", i,
				"error", err,
			)
			return err
		}
	}
	s.logger.InfoContext(ctx, "commit flushed",
		"origin", o.Origin,
		"writes", len(s.pending),
	)
	s.pending = nil
	return nil
}

// Pending returns the number of buffered writes.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) write(ctx context.Context, req writeRequest) error {
	if req.put != nil {
		if _, err := s.client.PutItem(ctx, &sdk.PutItemInput{
			TableName: &s.table,
			Item:      req.put,
		}); err != nil {
			return fmt.Errorf("PutItem failed: %w", err)
		}
		return nil
	}
	if _, err := s.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName: &s.table,
		Key:       req.del,
	}); err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return wserrors.NewConditionFailedError("delete", err.Error())
		}
		return fmt.Errorf("failed to delete item in DynamoDB: %w", err)
	}
	return nil
}

// PartitionOf reports the partition dimension registered for t.
func (s *Store) PartitionOf(t reflect.Type) (string, bool) {
	k, ok := s.reg.Lookup(t)
	if !ok || !k.Partitioned() {
		return "", false
	}
	return k.Partition, true
}

// encode marshals item and fills in the key attributes: EntityType,
// PartitionKey, the index-map keys and the GSI1 keys.
func (s *Store) encode(ctx context.Context, item any) (*registry.Kind, map[string]types.AttributeValue, error) {
	k, err := s.reg.KindOfItem(item)
	if err != nil {
		return nil, nil, err
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal %s: %w", k.Name, err)
	}
	av[AttrEntityType] = &types.AttributeValueMemberS{Value: k.Name}

	pk, err := partitionKeyOf(ctx, k, item)
	if err != nil {
		return nil, nil, err
	}
	if pk != "" {
		av[AttrPartitionKey] = &types.AttributeValueMemberS{Value: pk}
	}

	id := fmt.Sprint(k.Key(item))
	indexMap, ok := k.IndexMap()
	if !ok {
		indexMap = map[string]string{
			"PK": k.Name + "#" + id,
			"SK": k.Name + "#" + id,
		}
	}
	for field, v := range expandMacros(indexMap, av) {
		av[field] = &types.AttributeValueMemberS{Value: v}
	}
	if v, ok := av["SK"]; !ok || isEmpty(v) {
		av["SK"] = av["PK"]
	}
	if isEmpty(av["PK"]) {
		return nil, nil, wserrors.NewValidationError("PK", fmt.Sprintf("expanded to an empty value for %s %s", k.Name, id))
	}

	av[s.gsi.PartitionKeyName] = &types.AttributeValueMemberS{Value: k.Name}
	av[s.gsi.SortKeyName] = &types.AttributeValueMemberS{Value: sortKey(pk, id)}
	return k, av, nil
}

// partitionKeyOf returns the string form of the partition key the item is
// written under. Partitioned kinds need either an item-level key or one
// carried by ctx.
func partitionKeyOf(ctx context.Context, k *registry.Kind, item any) (string, error) {
	if !k.Partitioned() {
		return "", nil
	}
	if v, ok := k.PartitionKey(item); ok {
		return fmt.Sprint(v), nil
	}
	if v, ok := partition.FromContext(ctx, k.Partition); ok && !partition.IsUnset(v) {
		return fmt.Sprint(v), nil
	}
	return "", wserrors.NewPartitionConfigurationError(k.Name, k.Partition)
}

func sortKey(pk, id string) string {
	if pk == "" {
		return id
	}
	return pk + "#" + id
}

func primaryKey(av map[string]types.AttributeValue) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": av["PK"],
		"SK": av["SK"],
	}
}

func isEmpty(v types.AttributeValue) bool {
	s, ok := v.(*types.AttributeValueMemberS)
	return !ok || s.Value == ""
}

var macroPattern = regexp.MustCompile(`{([^}]+)}`)

// expandMacros replaces {Field} macros in every template with the string
// form of the matching attribute. Missing or non-scalar attributes expand
// to the empty string.
func expandMacros(indexMap map[string]string, av map[string]types.AttributeValue) map[string]string {
	res := make(map[string]string, len(indexMap))
	for fieldName, template := range indexMap {
		res[fieldName] = macroPattern.ReplaceAllStringFunc(template, func(macro string) string {
			val, ok := av[strings.Trim(macro, "{}")]
			if !ok {
				return ""
			}
			switch tv := val.(type) {
			case *types.AttributeValueMemberS:
				return tv.Value
			case *types.AttributeValueMemberN:
				return tv.Value
			case *types.AttributeValueMemberBOOL:
				return fmt.Sprintf("%v", tv.Value)
			default:
				return ""
			}
		})
	}
	return res
}
