package processor

import (
	"errors"
	"fmt"
)

// Sentinel errors for the submission pipeline. Every rejection maps to
// exactly one of these; callers switch on them to pick a transport error.
var (
	ErrInvalidRequest     = errors.New("invalid submission")
	ErrDuplicateNullifier = errors.New("nullifier already used")
	ErrGroupNotFound      = errors.New("group not found")
	ErrInvalidProof       = errors.New("proof verification failed")
	ErrOutsideGeofence    = errors.New("location outside geofence")
	ErrGroupFull          = errors.New("group is full")
	ErrStorageFailure     = errors.New("storage failure")
)

// OutsideGeofenceError wraps ErrOutsideGeofence with the computed distance
// and the fence radius, both in meters.
type OutsideGeofenceError struct {
	Distance float64
	Radius   float64
}

func (e *OutsideGeofenceError) Error() string {
	return fmt.Sprintf("%v: distance %.1fm exceeds radius %.1fm",
		ErrOutsideGeofence, e.Distance, e.Radius)
}

func (e *OutsideGeofenceError) Unwrap() error {
	return ErrOutsideGeofence
}

// Kind returns a stable string for the pipeline error, for logs and
// metrics labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrDuplicateNullifier):
		return "duplicate_nullifier"
	case errors.Is(err, ErrGroupNotFound):
		return "group_not_found"
	case errors.Is(err, ErrInvalidProof):
		return "invalid_proof"
	case errors.Is(err, ErrOutsideGeofence):
		return "outside_geofence"
	case errors.Is(err, ErrGroupFull):
		return "group_full"
	case errors.Is(err, ErrStorageFailure):
		return "storage_failure"
	default:
		return "internal"
	}
}
