// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist or is not
// visible to the caller.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the operation is invalid in the entity's current
// state: an already-active discussion, a duplicate submission, a wrong-phase
// transition, or an agent that is already running or stopped.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates a malformed or incomplete request.
var ErrValidation = errors.New("validation")

// ErrUsageLimitExceeded indicates the caller hit the monthly token cap or the
// trailing-24h project spend ceiling. Rate-limit class: the request had no
// side effects.
var ErrUsageLimitExceeded = errors.New("usage limit exceeded")

// ErrPaymentRequired indicates a self-key tier user has no stored provider
// credential for the requested model.
var ErrPaymentRequired = errors.New("payment required")

// ErrTimeout indicates a completion call exceeded its deadline.
var ErrTimeout = errors.New("timeout")

// ErrUnauthorized indicates a missing or invalid credential.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden indicates a valid credential without access to the resource.
var ErrForbidden = errors.New("forbidden")
