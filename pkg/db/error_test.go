package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(errors.New(`ERROR: duplicate key value violates unique constraint "cdrs_pkey"`)))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062: Duplicate entry")))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: cdrs.id")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)

	d, err := Dialect(Config{Type: "sqlite", Name: "file::memory:"})
	assert.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
}
