package sources

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/circuitbreaker"
)

var (
	ErrTimeout       = errors.New("timeout")
	ErrRateLimited   = errors.New("rate_limited")
	ErrUpstream      = errors.New("upstream_error")
	ErrNoData        = errors.New("no_data")
	ErrNotConfigured = errors.New("not_configured")
)

// Failure is the typed error every adapter returns. Kind is one of the sentinel errors above.
type Failure struct {
	Source gear.SourceID
	Kind   error
	Status int
	Err    error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s: %v", f.Source, f.Kind)
	if f.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", f.Status)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

func fail(source gear.SourceID, kind error, err error) error {
	return &Failure{Source: source, Kind: kind, Err: err}
}

func failStatus(source gear.SourceID, status int) error {
	f := &Failure{Source: source, Status: status}
	switch {
	case status == http.StatusTooManyRequests:
		f.Kind = ErrRateLimited
	case status == http.StatusNotFound || status == http.StatusGone:
		f.Kind = ErrNoData
	default:
		f.Kind = ErrUpstream
	}
	return f
}

// Kind names the failure category of err for reports and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return ErrTimeout.Error()
	case errors.Is(err, ErrRateLimited):
		return ErrRateLimited.Error()
	case errors.Is(err, ErrNoData):
		return ErrNoData.Error()
	case errors.Is(err, ErrNotConfigured):
		return ErrNotConfigured.Error()
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return "circuit_open"
	}
	return ErrUpstream.Error()
}

// Skippable reports whether err means the adapter never attempted the upstream call.
func Skippable(err error) bool {
	return errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, circuitbreaker.ErrCircuitOpen) ||
		errors.Is(err, circuitbreaker.ErrTooManyRequests)
}

// retryable excludes rejected credentials and blocked clients; the same request would be refused again.
func retryable(err error) bool {
	var f *Failure
	if errors.As(err, &f) && (f.Status == http.StatusUnauthorized || f.Status == http.StatusForbidden) {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstream)
}
