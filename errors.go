package credx

import (
	"errors"
	"fmt"
)

var (
	// Lookup errors
	ErrInvalidScope   = errors.New("invalid scope")
	ErrSecretNotFound = errors.New("secret not found")
	ErrDataIntegrity  = errors.New("data integrity violation")

	// Record errors
	ErrRecordNotFound   = errors.New("record not found")
	ErrRecordLoad       = errors.New("access key record unusable")
	ErrStoreUnavailable = errors.New("record store unavailable")

	// Crypto errors
	ErrMasterKeyUnavailable = errors.New("master key unavailable")
	ErrEncryptionFailed     = errors.New("encryption failed")
	ErrDecryptionFailed     = errors.New("decryption failed")

	// Remote errors
	ErrRoleAssumption = errors.New("role assumption failed")
	ErrRemoteProtocol = errors.New("remote secrets call failed")

	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// SecretNotFoundError is returned when no record matches a scope.
type SecretNotFoundError struct {
	Scope Scope
}

func (e *SecretNotFoundError) Error() string {
	return fmt.Sprintf("no secret found with name %q that is available to caller %q and tenant %q",
		e.Scope.Name, e.Scope.CallerID, e.Scope.TenantID)
}

func (e *SecretNotFoundError) Is(target error) bool { return target == ErrSecretNotFound }

// DataIntegrityError is returned when the store holds more than one record
// for a scope, or returns a record outside the requested scope.
type DataIntegrityError struct {
	Scope   Scope
	Matches int
	Reason  string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("%s for secret %q (tenant %q, caller %q): %s",
		ErrDataIntegrity, e.Scope.Name, e.Scope.TenantID, e.Scope.CallerID, e.Reason)
}

func (e *DataIntegrityError) Is(target error) bool { return target == ErrDataIntegrity }

// RecordLoadError is returned when the referenced access-key record is
// missing or cannot be used.
type RecordLoadError struct {
	Ref string
	Err error
}

func (e *RecordLoadError) Error() string {
	return fmt.Sprintf("%s: access key %q: %v", ErrRecordLoad, e.Ref, e.Err)
}

func (e *RecordLoadError) Is(target error) bool { return target == ErrRecordLoad }
func (e *RecordLoadError) Unwrap() error        { return e.Err }

// DecryptionError names the field that failed to decrypt. Err never carries
// key material.
type DecryptionError struct {
	Field string
	Err   error
}

func (e *DecryptionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", ErrDecryptionFailed, e.Err)
	}
	return fmt.Sprintf("%s: field %q: %v", ErrDecryptionFailed, e.Field, e.Err)
}

func (e *DecryptionError) Is(target error) bool { return target == ErrDecryptionFailed }
func (e *DecryptionError) Unwrap() error        { return e.Err }

// RoleAssumptionError covers transport failures, non-2xx responses and
// malformed AssumeRole bodies.
type RoleAssumptionError struct {
	RoleARN    string
	StatusCode int
	Code       string
	Reason     string
	Err        error
}

func (e *RoleAssumptionError) Error() string {
	msg := fmt.Sprintf("%s: role %q", ErrRoleAssumption, e.RoleARN)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RoleAssumptionError) Is(target error) bool { return target == ErrRoleAssumption }
func (e *RoleAssumptionError) Unwrap() error        { return e.Err }

// RemoteProtocolError covers failed or malformed GetSecretValue and
// PutSecretValue calls.
type RemoteProtocolError struct {
	Action     string
	SecretID   string
	StatusCode int
	Code       string
	Reason     string
	Err        error
}

func (e *RemoteProtocolError) Error() string {
	msg := fmt.Sprintf("%s: %s %q", ErrRemoteProtocol, e.Action, e.SecretID)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteProtocolError) Is(target error) bool { return target == ErrRemoteProtocol }
func (e *RemoteProtocolError) Unwrap() error        { return e.Err }

// OperationError wraps the error of the stage at which a broker operation
// stopped. errors.As and errors.Is see through it to the stage error.
type OperationError struct {
	Op    string
	Scope Scope
	Stage Stage
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s (stage %s): %v", e.Op, e.Scope, e.Stage, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// newOperationError classifies err by its sentinel, falling back to the
// stage the caller was in when err carries none.
func newOperationError(op string, scope Scope, current Stage, err error) error {
	if err == nil {
		return nil
	}
	stage := StageOf(err)
	if stage == StageUnknown {
		stage = current
	}
	return &OperationError{Op: op, Scope: scope, Stage: stage, Err: err}
}

// IsNotFound returns true if no secret or record exists for the request.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSecretNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}

// IsIntegrityError returns true if stored data is inconsistent or cannot be decrypted.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrDataIntegrity) ||
		errors.Is(err, ErrDecryptionFailed) ||
		errors.Is(err, ErrRecordLoad)
}

// IsAuthError returns true if the failure happened while obtaining credentials.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrRoleAssumption) ||
		errors.Is(err, ErrMasterKeyUnavailable)
}

// IsRemoteError returns true if the remote secrets store rejected or garbled a call.
func IsRemoteError(err error) bool {
	return errors.Is(err, ErrRemoteProtocol)
}

// IsConfigurationError returns true if the error represents a configuration problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrInvalidScope)
}
