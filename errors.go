package soar

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the failures of the weather side of the core.
type ErrorKind uint8

const (
	// AvailabilityError means no upstream data is published for the requested time.
	AvailabilityError ErrorKind = iota + 1
	// FetchError is a transport or IO failure.
	FetchError
	// ParsingError is malformed or missing data, including a coordinate without a grid cell.
	ParsingError
	// OutOfBoundsError means the coordinates are outside the supported geography.
	OutOfBoundsError
	// ForecastError means the surface forecast is unavailable.
	ForecastError
)

func (k ErrorKind) String() string {
	switch k {
	case AvailabilityError:
		return "availability"
	case FetchError:
		return "fetch"
	case ParsingError:
		return "parsing"
	case OutOfBoundsError:
		return "out of bounds"
	case ForecastError:
		return "forecast"
	}
	return "unknown"
}

// Sentinels to be used with errors.Is, they match any WeatherError of the same kind.
var (
	ErrAvailability = &WeatherError{Kind: AvailabilityError}
	ErrFetch        = &WeatherError{Kind: FetchError}
	ErrParsing      = &WeatherError{Kind: ParsingError}
	ErrOutOfBounds  = &WeatherError{Kind: OutOfBoundsError}
	ErrForecast     = &WeatherError{Kind: ForecastError}
)

// ErrInvalidConfig is returned when a rocket configuration cannot be integrated.
var ErrInvalidConfig = errors.New("invalid rocket configuration")

// WeatherError is a failure of the profile building or lookup.
type WeatherError struct {
	Kind ErrorKind
	Op   string // operation which failed
	Err  error  // underlying error, may be nil
}

func (e *WeatherError) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *WeatherError) Unwrap() error {
	return e.Err
}

// Is matches the sentinels of the same kind.
func (e *WeatherError) Is(target error) bool {
	t, ok := target.(*WeatherError)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// NewError returns a WeatherError of the given kind.
func NewError(kind ErrorKind, op string, err error) error {
	return &WeatherError{Kind: kind, Op: op, Err: err}
}

// Errorf is the formatted counterpart of NewError.
func Errorf(kind ErrorKind, op, format string, args ...interface{}) error {
	return &WeatherError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first WeatherError in the chain of err, or zero if there is none.
func KindOf(err error) ErrorKind {
	var werr *WeatherError
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return 0
}
