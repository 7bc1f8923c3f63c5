// Package errors defines the error kinds and sentinel errors shared by all
// nifpre packages, plus small helpers for wrapping errors with context.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to react to it.
type Kind int

// Error kinds, one per failure family.
const (
	KindUnknown Kind = iota
	// KindConfig covers missing or malformed settings. Raised before any I/O.
	KindConfig
	// KindResolution covers unsupported targets and runtime versions.
	KindResolution
	// KindTransport covers connection, TLS and non-200 failures.
	KindTransport
	// KindIntegrity covers missing checksum entries and digest mismatches.
	KindIntegrity
	// KindExtraction covers archive read and filesystem write failures.
	KindExtraction
	// KindBuild covers a failing external build command.
	KindBuild
	// KindIO covers local filesystem failures outside extraction.
	KindIO
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindResolution:
		return "resolution"
	case KindTransport:
		return "transport"
	case KindIntegrity:
		return "integrity"
	case KindExtraction:
		return "extraction"
	case KindBuild:
		return "build"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath    = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath  = fmt.Errorf("invalid config file path")
	ErrConfigParse        = fmt.Errorf("failed to parse config")
	ErrConfigValidation   = fmt.Errorf("invalid configuration")
	ErrConfigEncode       = fmt.Errorf("failed to encode config")
	ErrConfigDirectory    = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate   = fmt.Errorf("failed to create config file")
	ErrConfigFileExists   = fmt.Errorf("configuration file already exists")
	ErrUnknownConfigKey   = fmt.Errorf("unknown configuration key")
	ErrMissingAppName     = fmt.Errorf("app name is required")
	ErrInvalidAppVersion  = fmt.Errorf("app version is not a valid semantic version")
	ErrMissingBaseURL     = fmt.Errorf("base URL is required")
	ErrInvalidURL         = fmt.Errorf("invalid URL")
	ErrNoTargets          = fmt.Errorf("no targets configured")
	ErrNoRuntimeVersions  = fmt.Errorf("no runtime versions configured")
	ErrInvalidConvention  = fmt.Errorf("unknown target convention")
	ErrInvalidLogLevel    = fmt.Errorf("invalid log level")
	ErrInvalidLogFormat   = fmt.Errorf("invalid log format")
	ErrHTTPTimeoutInvalid = fmt.Errorf("http_timeout cannot be negative")

	// Resolution errors.
	ErrUnsupportedTarget         = fmt.Errorf("unsupported target")
	ErrUnsupportedRuntimeVersion = fmt.Errorf("unsupported runtime version")
	ErrInvalidRuntimeVersion     = fmt.Errorf("invalid runtime version")

	// Transport errors.
	ErrDownloadFailed   = fmt.Errorf("download failed")
	ErrUnexpectedStatus = fmt.Errorf("unexpected status code")

	// Integrity errors.
	ErrChecksumMissing      = fmt.Errorf("missing checksum entry")
	ErrChecksumMismatch     = fmt.Errorf("checksum mismatch")
	ErrUnsupportedAlgorithm = fmt.Errorf("unsupported checksum algorithm")
	ErrMalformedChecksum    = fmt.Errorf("malformed checksum entry")

	// Extraction errors.
	ErrUnsafePath  = fmt.Errorf("unsafe path in archive")
	ErrArchiveOpen = fmt.Errorf("failed to open archive")

	// Build errors.
	ErrBuildFailed      = fmt.Errorf("build failed")
	ErrNoBuildCommand   = fmt.Errorf("no build command configured")
	ErrEmptyBuildOutput = fmt.Errorf("build produced no output")

	// Cache errors.
	ErrCacheDirectory = fmt.Errorf("cache directory cannot be empty")
	ErrInvalidPath    = fmt.Errorf("invalid path")
	ErrNoMetadata     = fmt.Errorf("no metadata recorded")

	// Hook errors.
	ErrHookExecution = fmt.Errorf("error executing hook")
	ErrHookScript    = fmt.Errorf("hook script error")
	ErrHookLoad      = fmt.Errorf("failed to load hook")
)

// Error is a classified failure. Op names the operation that failed,
// Subject the URL, path or target it failed on, and Remedy the command the
// operator should run to fix it.
type Error struct {
	Kind    Kind
	Op      string
	Subject string
	Remedy  string
	Err     error
}

// New builds an *Error.
func New(kind Kind, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// WithRemedy sets the remediation hint and returns the receiver.
func (e *Error) WithRemedy(remedy string) *Error {
	e.Remedy = remedy
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Op
	if e.Subject != "" {
		msg += " " + e.Subject
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Remedy != "" {
		msg += " (run `" + e.Remedy + "`)"
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// RemedyOf returns the first remediation hint found in err's chain.
func RemedyOf(err error) string {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return ""
		}
		if e.Remedy != "" {
			return e.Remedy
		}
		err = e.Err
	}
	return ""
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join wraps stderrors.Join.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
