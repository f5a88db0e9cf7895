package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound converts sql.ErrNoRows to a nil result without error, so a
// missing row reads as "not found" rather than as a store failure.
//
// Usage:
//
//	var item model.Item
//	err := r.db.GetContext(ctx, &item, query, args...)
//	return HandleNotFound(&item, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
