package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an installer failure so the pipeline and the CLI can
// decide between aborting, degrading and reporting an operator abort.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfig covers unsupported architectures, versions and invalid input.
	KindConfig
	// KindCapability means a required external tool is missing.
	KindCapability
	// KindTransient means a tool was present but the operation failed.
	KindTransient
	// KindDegradable failures are absorbed by the staging step.
	KindDegradable
	// KindAborted is an operator decision, not a failure.
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindCapability:
		return "capability"
	case KindTransient:
		return "transient"
	case KindDegradable:
		return "degradable"
	case KindAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type Error struct {
	Op   string
	Kind Kind
	// Key names the message catalog entry shown to the operator.
	Key  string
	Args []any
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("operation %q failed", e.Op)
	}
	return fmt.Sprintf("operation %q failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with the operation name. The kind and catalog key of a
// wrapped *Error are inherited so callers can add context freely.
func E(op string, err error) error {
	e := &Error{Op: op, Err: err}
	var inner *Error
	if stderrors.As(err, &inner) {
		e.Kind = inner.Kind
		e.Key = inner.Key
		e.Args = inner.Args
	}
	return e
}

// New builds a classified error carrying a catalog key.
func New(kind Kind, op, key string, err error, args ...any) error {
	return &Error{Op: op, Kind: kind, Key: key, Args: args, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As is re-exported so callers need not import both errors packages.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
