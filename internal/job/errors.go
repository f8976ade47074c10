package job

import (
	"errors"
)

const (
	// AcceptedMediaType is the only declared type the pipeline takes.
	AcceptedMediaType = "video/mp4"

	MsgNoFile          = "No file uploaded!"
	MsgUnsupportedType = "Invalid file type. Only MP4 files are allowed."
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrRetrieval         = errors.New("retrieval error")
	ErrTranscode         = errors.New("transcode error")
	ErrArchive           = errors.New("archive error")
	ErrUpload            = errors.New("upload error")
	ErrNotification      = errors.New("notification error")
	ErrPersistence       = errors.New("persistence error")
)

// Error classifies a pipeline fault. Error() returns the underlying message
// so it can be shown to callers unchanged.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// KindOf returns the kind of the first *Error in err's chain, or nil.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// IsInputError reports faults caused by the request itself.
func IsInputError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrUnsupportedFormat)
}
