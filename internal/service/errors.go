package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrReviewNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "review")
}

type ErrInvalidSubmission struct {
	error
}

func NewErrInvalidSubmission(message string) *ErrInvalidSubmission {
	return &ErrInvalidSubmission{fmt.Errorf("bad request: %s", message)}
}
