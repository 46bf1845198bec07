package docmodel

import (
	"errors"
	"fmt"
)

// ErrTableAlreadyExists is returned by DocData.ReceiveAction when an
// AddTable names a table already present in the snapshot.
var ErrTableAlreadyExists = errors.New("table already exists")

// ErrTableNotFound is a typed not-found error carrying the missing
// table id, in the style of the teacher's resource-layer errors.
type ErrTableNotFound struct {
	TableID string
}

func (e *ErrTableNotFound) Error() string {
	return fmt.Sprintf("table %s not found", e.TableID)
}

// NewErrTableNotFound constructs an ErrTableNotFound for tableID.
func NewErrTableNotFound(tableID string) *ErrTableNotFound {
	return &ErrTableNotFound{TableID: tableID}
}

// ErrColumnNotFound is a typed not-found error carrying the missing
// column and its owning table.
type ErrColumnNotFound struct {
	TableID string
	ColID   string
}

func (e *ErrColumnNotFound) Error() string {
	return fmt.Sprintf("column %s not found in table %s", e.ColID, e.TableID)
}

// NewErrColumnNotFound constructs an ErrColumnNotFound.
func NewErrColumnNotFound(tableID, colID string) *ErrColumnNotFound {
	return &ErrColumnNotFound{TableID: tableID, ColID: colID}
}
