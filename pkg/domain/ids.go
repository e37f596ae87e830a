// Package domain holds typed identifiers shared across modules.
package domain

import (
	"github.com/google/uuid"

	dErrors "classlog/pkg/domain-errors"
)

// ClassLogID identifies a teacher's submitted class record.
type ClassLogID uuid.UUID

// OrphanageID identifies the orphanage a class log belongs to.
type OrphanageID uuid.UUID

func (id ClassLogID) String() string  { return uuid.UUID(id).String() }
func (id OrphanageID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id ClassLogID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParseClassLogID parses a non-nil UUID string into a ClassLogID.
func ParseClassLogID(s string) (ClassLogID, error) {
	u, err := parseUUID(s, "class log id")
	if err != nil {
		return ClassLogID{}, err
	}
	return ClassLogID(u), nil
}

// ParseOrphanageID parses a non-nil UUID string into an OrphanageID.
func ParseOrphanageID(s string) (OrphanageID, error) {
	u, err := parseUUID(s, "orphanage id")
	if err != nil {
		return OrphanageID{}, err
	}
	return OrphanageID(u), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
