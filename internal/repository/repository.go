package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/spherre/multisig-service/internal/service"
)

// Repository provides database operations over the spherre schema. It
// implements the repository interfaces declared in internal/service.
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// storeErr maps driver errors into the service taxonomy: uniqueness
// violations become ErrAlreadyExists, anything else is surfaced as an opaque
// ErrStoreUnavailable.
func storeErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", service.ErrAlreadyExists, op)
	}
	return fmt.Errorf("%w: %s: %v", service.ErrStoreUnavailable, op, err)
}

func pagination(total, page, perPage int) *service.Pagination {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return &service.Pagination{Total: total, Pages: pages, CurrentPage: page, PerPage: perPage}
}
