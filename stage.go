package credx

import "errors"

// Stage is the step of a broker operation at which an error occurred.
type Stage int8

const (
	StageUnknown Stage = iota
	StageLookup
	StageLoad
	StageDecrypt
	StageAssumeRole
	StageRemote
)

func (s Stage) String() string {
	stages := map[Stage]string{
		StageUnknown:    "unknown",
		StageLookup:     "lookup",
		StageLoad:       "load",
		StageDecrypt:    "decrypt",
		StageAssumeRole: "assume role",
		StageRemote:     "remote",
	}

	if str, ok := stages[s]; ok {
		return str
	}
	return "unknown"
}

// StageOf classifies err by the first stage sentinel it matches.
func StageOf(err error) Stage {
	var opErr *OperationError
	switch {
	case err == nil:
		return StageUnknown
	case errors.As(err, &opErr):
		return opErr.Stage
	case errors.Is(err, ErrInvalidScope),
		errors.Is(err, ErrSecretNotFound),
		errors.Is(err, ErrDataIntegrity):
		return StageLookup
	case errors.Is(err, ErrRecordLoad),
		errors.Is(err, ErrRecordNotFound):
		return StageLoad
	case errors.Is(err, ErrDecryptionFailed),
		errors.Is(err, ErrMasterKeyUnavailable):
		return StageDecrypt
	case errors.Is(err, ErrRoleAssumption):
		return StageAssumeRole
	case errors.Is(err, ErrRemoteProtocol):
		return StageRemote
	default:
		return StageUnknown
	}
}
