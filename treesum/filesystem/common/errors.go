package common

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by a fingerprint run. Compare with errors.Is.
var (
	ErrCache  = errors.New("cache error")
	ErrPrefix = errors.New("path prefix error")
	ErrIO     = errors.New("i/o error")
	ErrConfig = errors.New("config error")
)

// Kind classifies an Error
type Kind int

const (
	KindCache Kind = iota
	KindPrefix
	KindIO
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindCache:
		return "cache"
	case KindPrefix:
		return "prefix"
	case KindIO:
		return "io"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindCache:
		return ErrCache
	case KindPrefix:
		return ErrPrefix
	case KindIO:
		return ErrIO
	case KindConfig:
		return ErrConfig
	default:
		return nil
	}
}

// Error is a fatal run error carrying the failed operation and path
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind.sentinel(), e.Op)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// CacheError wraps a cache deserialization or persistence failure
func CacheError(op, path string, err error) error {
	return &Error{Kind: KindCache, Op: op, Path: path, Err: err}
}

// PrefixError reports a path that cannot be expressed relative to the scan root
func PrefixError(path, root string, err error) error {
	return &Error{Kind: KindPrefix, Op: "relative to " + root, Path: path, Err: err}
}

// IOError wraps a fatal filesystem failure
func IOError(op, path string, err error) error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

// ConfigError wraps an invalid configuration value
func ConfigError(op string, err error) error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
