package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapConstraintError(t *testing.T) {
	unique := &pq.Error{Code: uniqueViolation, Message: "duplicate key value"}
	assert.ErrorIs(t, mapConstraintError(unique), ErrConflict)

	// Wrapped unique violations still map.
	wrapped := fmt.Errorf("insert chunk: %w", unique)
	assert.ErrorIs(t, mapConstraintError(wrapped), ErrConflict)

	// Other constraint failures pass through untouched.
	fk := &pq.Error{Code: "23503", Message: "foreign key violation"}
	assert.Equal(t, error(fk), mapConstraintError(fk))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, mapConstraintError(plain))

	assert.NoError(t, mapConstraintError(nil))
}
