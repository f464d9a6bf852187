package extractions

import "errors"

// ErrNotFound signals a missing or foreign-owned extraction record.
var ErrNotFound = errors.New("extraction not found")

// ErrInvalidInput signals a malformed request (no files, empty text, bad id).
var ErrInvalidInput = errors.New("invalid input")

// ErrFileTooLarge signals a file above the upload size bound. One oversized
// file rejects the whole submitted batch before any network call.
var ErrFileTooLarge = errors.New("file exceeds the maximum upload size")

// ErrUnsupportedType signals a MIME family the workflow does not accept.
var ErrUnsupportedType = errors.New("unsupported file type")
