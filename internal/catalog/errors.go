package catalog

import (
	"errors"
	"fmt"
)

// Code identifies a catalog error. The names follow the storage system's
// error names so expected stderr substrings carry over.
type Code string

const (
	CodeNoRows             Code = "CAT_NO_ROWS_FOUND"
	CodeUnknownCollection  Code = "CAT_UNKNOWN_COLLECTION"
	CodeAlreadyExists      Code = "CATALOG_ALREADY_HAS_ITEM_BY_THAT_NAME"
	CodeCollectionNotEmpty Code = "CAT_COLLECTION_NOT_EMPTY"
	CodeOverwrite          Code = "OVERWRITE_WITHOUT_FORCE_FLAG"
	CodeNoGoodReplica      Code = "SYS_NO_GOOD_REPLICA"
	CodeReplicaMissing     Code = "SYS_REPLICA_DOES_NOT_EXIST"
	CodeCopyInResource     Code = "SYS_COPY_ALREADY_IN_RESC"
	CodeInvalidInput       Code = "SYS_INVALID_INPUT_PARAM"
)

// Error is a failed catalog operation.
type Error struct {
	Code    Code
	Message string

	// Path is the logical path involved, when there is one.
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s [%s]", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, path, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Path: path}
}

// IsCode reports whether err is or wraps a catalog Error with code.
func IsCode(err error, code Code) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
