/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package testmodels holds a small rating-system domain used by tests.
// Participants are partitioned by the rating system they belong to.
package testmodels

import (
	"context"
	"reflect"

	"github.com/go-openapi/strfmt"

	"github.com/suparena/workspace/partition"
	"github.com/suparena/workspace/registry"
)

// RatingPartition names the partition dimension of participants.
const RatingPartition = "ratingSystem"

type RatingSystem struct {

	// Timestamp when the rating system was created.
	// Format: date-time
	CreatedAt *strfmt.DateTime `json:"CreatedAt,omitempty" dynamodbav:",omitempty"`

	// A description of the rating system.
	Description string `json:"Description"`

	// Unique identifier for the rating system.
	// Required: true
	ID string `json:"Id"`

	// Name of the rating system.
	// Required: true
	Name string `json:"Name"`

	// site Url
	SiteURL string `json:"SiteUrl,omitempty"`
}

// Participant is anything that holds a rating within a rating system.
type Participant interface {
	ParticipantID() string
	RatingSystemID() string
}

type Player struct {
	ID       string `json:"Id"`
	SystemID string `json:"SystemId,omitempty"`
	Name     string `json:"Name"`
	Rating   int    `json:"Rating"`
}

func (p *Player) ParticipantID() string  { return p.ID }
func (p *Player) RatingSystemID() string { return p.SystemID }

type Team struct {
	ID       string   `json:"Id"`
	SystemID string   `json:"SystemId,omitempty"`
	Name     string   `json:"Name"`
	Members  []string `json:"Members"`
}

func (t *Team) ParticipantID() string  { return t.ID }
func (t *Team) RatingSystemID() string { return t.SystemID }

// Register adds RatingSystem, Participant, Player and Team to reg. Player and
// Team are children of Participant; all three are partitioned by rating
// system. An empty SystemID defers to the ambient partition value.
func Register(reg *registry.Registry) error {
	if err := registry.Register(reg, "RatingSystem", func(rs *RatingSystem) any { return rs.ID },
		registry.WithIndexMap(map[string]string{
			"PK": "RS#{ID}",
			"SK": "RS#{ID}",
		}),
	); err != nil {
		return err
	}
	if err := registry.Register(reg, "Participant", func(p Participant) any { return p.ParticipantID() },
		registry.WithPartition(RatingPartition),
		registry.WithPartitionKey(func(p Participant) (any, bool) { return systemKey(p.RatingSystemID()) }),
	); err != nil {
		return err
	}
	if err := registry.Register(reg, "Player", func(p *Player) any { return p.ID },
		registry.Parent[Participant](),
		registry.WithPartition(RatingPartition),
		registry.WithPartitionKey(func(p *Player) (any, bool) { return systemKey(p.SystemID) }),
		registry.WithIndexMap(map[string]string{
			"PK": "PLAYER#{ID}",
			"SK": "RS#{PartitionKey}",
		}),
	); err != nil {
		return err
	}
	return registry.Register(reg, "Team", func(t *Team) any { return t.ID },
		registry.Parent[Participant](),
		registry.WithPartition(RatingPartition),
		registry.WithPartitionKey(func(t *Team) (any, bool) { return systemKey(t.SystemID) }),
	)
}

func systemKey(id string) (any, bool) {
	return id, id != ""
}

// Dimension returns the rating-system partition dimension resolving keys
// through systems.
func Dimension(systems map[string]*RatingSystem) partition.Dimension {
	return partition.Dimension{
		Name: RatingPartition,
		Resolve: func(ctx context.Context, key any) (any, error) {
			id, _ := key.(string)
			rs, ok := systems[id]
			if !ok {
				return nil, nil
			}
			return rs, nil
		},
		KeyOf: func(instance any) any { return instance.(*RatingSystem).ID },
		Type:  reflect.TypeFor[*RatingSystem](),
	}
}
