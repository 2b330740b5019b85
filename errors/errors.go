/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when attempting to register something twice
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConditionFailed is returned when a conditional write fails
	ErrConditionFailed = errors.New("condition check failed")

	// ErrNoIndexMap is returned when no index map is registered for a kind
	ErrNoIndexMap = errors.New("no index map found for kind")

	// ErrUnknownKind is returned when an item's Go type was never registered
	ErrUnknownKind = errors.New("unknown kind")

	// ErrPartitionConfiguration is returned when a partitioned kind is written
	// without a resolvable partition key
	ErrPartitionConfiguration = errors.New("partition configuration error")

	// ErrCrossPartitionResolution is returned when a partition id cannot be
	// resolved into a partition instance during commit
	ErrCrossPartitionResolution = errors.New("cross partition resolution failed")
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyExistsError represents an error when an entity already exists
type AlreadyExistsError struct {
	Type string
	Key  string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Type, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConditionFailedError represents a failed conditional operation
type ConditionFailedError struct {
	Operation string
	Condition string
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("condition check failed for %s operation: %s", e.Operation, e.Condition)
}

func (e *ConditionFailedError) Is(target error) bool {
	return target == ErrConditionFailed
}

// UnknownKindError is returned when an item of an unregistered Go type reaches the store
type UnknownKindError struct {
	Type string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("kind %s is not registered", e.Type)
}

func (e *UnknownKindError) Is(target error) bool {
	return target == ErrUnknownKind
}

// PartitionConfigurationError is raised when a partitioned kind is written
// with no item-level key and no ambient value for its partition.
type PartitionConfigurationError struct {
	Kind      string
	Partition string
}

func (e *PartitionConfigurationError) Error() string {
	return fmt.Sprintf("kind %s is partitioned by %q but no partition key is set", e.Kind, e.Partition)
}

func (e *PartitionConfigurationError) Is(target error) bool {
	return target == ErrPartitionConfiguration
}

// CrossPartitionResolutionError is raised when a pending chunk's partition key
// cannot be turned into a partition instance for the commit target.
type CrossPartitionResolutionError struct {
	Kind      string
	Partition string
	Key       any
	Err       error
}

func (e *CrossPartitionResolutionError) Error() string {
	msg := fmt.Sprintf("cannot resolve partition %q key %v for kind %s", e.Partition, e.Key, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CrossPartitionResolutionError) Is(target error) bool {
	return target == ErrCrossPartitionResolution
}

func (e *CrossPartitionResolutionError) Unwrap() error {
	return e.Err
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(entityType, key string) error {
	return &NotFoundError{Type: entityType, Key: key}
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(entityType, key string) error {
	return &AlreadyExistsError{Type: entityType, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewConditionFailedError creates a new ConditionFailedError
func NewConditionFailedError(operation, condition string) error {
	return &ConditionFailedError{Operation: operation, Condition: condition}
}

// NewUnknownKindError creates a new UnknownKindError
func NewUnknownKindError(typeName string) error {
	return &UnknownKindError{Type: typeName}
}

// NewPartitionConfigurationError creates a new PartitionConfigurationError
func NewPartitionConfigurationError(kind, partition string) error {
	return &PartitionConfigurationError{Kind: kind, Partition: partition}
}

// NewCrossPartitionResolutionError creates a new CrossPartitionResolutionError
func NewCrossPartitionResolutionError(kind, partition string, key any, cause error) error {
	return &CrossPartitionResolutionError{Kind: kind, Partition: partition, Key: key, Err: cause}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConditionFailed checks if an error is a condition failed error
func IsConditionFailed(err error) bool {
	return errors.Is(err, ErrConditionFailed)
}

// IsUnknownKind checks if an error reports an unregistered kind
func IsUnknownKind(err error) bool {
	return errors.Is(err, ErrUnknownKind)
}

// IsPartitionConfiguration checks if an error is a partition configuration error
func IsPartitionConfiguration(err error) bool {
	return errors.Is(err, ErrPartitionConfiguration)
}

// IsCrossPartitionResolution checks if an error is a cross partition resolution failure
func IsCrossPartitionResolution(err error) bool {
	return errors.Is(err, ErrCrossPartitionResolution)
}
