package dsp

// ContractError represents a hard precondition violation — a caller or
// integration bug, never a normal runtime condition. Recoverable "no result"
// outcomes elsewhere in the pipeline are expressed as nil results, not errors.
type ContractError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *ContractError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ContractError) Unwrap() error {
	return e.Cause
}

// Contract violation codes
const (
	ErrCodeFFTSize    = "FFT_SIZE_NOT_POWER_OF_TWO"
	ErrCodeBufferSize = "BUFFER_SIZE_MISMATCH"
	ErrCodeFrameSize  = "FRAME_SIZE_MISMATCH"
)

// NewContractError creates a new contract violation error
func NewContractError(code, message string, cause error) *ContractError {
	return &ContractError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
