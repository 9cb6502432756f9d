package repetition

import "fmt"

// Code identifies a configuration problem detected before dispatch.
// Codes are errors so callers can match them with errors.Is.
type Code string

const (
	CodeBaseRequestNotSelected   Code = "BaseHttpRequestNotSelected"
	CodeBaseRequestNotFound      Code = "BaseHttpRequestNotFound"
	CodeDelayNegative            Code = "DelayCantBeNegative"
	CodeRepetitionsAtLeastOne    Code = "NumberOfRepetitionsMustBeAtLeast1"
	CodeMaxConcurrencyAtLeastOne Code = "MaxDopMustBeAtLeast1"
	CodeInputDataFileNotFound    Code = "InputDataFileNotFound"
	CodeInputDataInvalid         Code = "InputDataInvalid"
	CodeInputDataAtLeastOneLine  Code = "InputDataAtLeastOneLine"
)

var codeMessages = map[Code]string{
	CodeBaseRequestNotSelected:   "base request is not selected",
	CodeBaseRequestNotFound:      "base request not found",
	CodeDelayNegative:            "delay can't be negative",
	CodeRepetitionsAtLeastOne:    "number of repetitions must be at least 1",
	CodeMaxConcurrencyAtLeastOne: "max concurrency must be at least 1",
	CodeInputDataFileNotFound:    "input data file not found",
	CodeInputDataInvalid:         "input data is invalid",
	CodeInputDataAtLeastOneLine:  "input data must contain at least one line",
}

func (c Code) Error() string { return string(c) }

// Message returns the human readable description of the code.
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return string(c)
}

// ConfigError reports the first configuration rule a repetition config breaks.
type ConfigError struct {
	Code  Code
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Field, e.Code.Message())
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is matches the error against a Code.
func (e *ConfigError) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

func configError(code Code, field string, cause error) *ConfigError {
	return &ConfigError{Code: code, Field: field, Err: cause}
}
