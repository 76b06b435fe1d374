package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"
)

// recoverableError mirrors models.RecoverableError locally to avoid import
// cycles between output and store. errors.As requires a concrete or pointer
// type target — using the interface directly here lets Go's structural typing
// match any implementor without coupling to the models package.
type recoverableError interface {
	error
	ErrorCode() string
	Context() map[string]string
	SuggestedAction() string
}

// ErrorPayload is the `error` member of the response envelope, present iff
// `ok` is false.
type ErrorPayload struct {
	Code            string            `json:"code"`
	Message         string            `json:"message"`
	Context         map[string]string `json:"context,omitempty"`
	SuggestedAction string            `json:"suggested_action,omitempty"`
}

// Response is the schema envelope every out-of-process response is wrapped
// in: a URI identifying the schema, a success flag, and either `data` or
// `error` depending on that flag.
type Response struct {
	Schema string        `json:"schema"`
	Ok     bool          `json:"ok"`
	Data   interface{}   `json:"data,omitempty"`
	Error  *ErrorPayload `json:"error,omitempty"`
}

// schemaURI builds an implementation-defined schema URI for a response kind.
// The exact URI shape is unspecified beyond being stable per operation.
func schemaURI(kind string) string {
	return "urn:zjj:schema:" + kind + ":v1"
}

// Config holds output configuration.
type Config struct {
	Writer io.Writer
	Pretty bool
}

// DefaultConfig returns configuration using stdout and environment.
func DefaultConfig() Config {
	pretty := os.Getenv("ZJJ_PRETTY_JSON") == "1" || os.Getenv("ZJJ_PRETTY_JSON") == "true"
	return Config{
		Writer: os.Stdout,
		Pretty: pretty,
	}
}

// Success wraps a successful response with data.
func Success(data interface{}) Response {
	return Response{
		Schema: schemaURI("success"),
		Ok:     true,
		Data:   data,
	}
}

// Error wraps an error in a response, enriching with structured metadata
// when the error implements models.RecoverableError.
func Error(err error) Response {
	payload := &ErrorPayload{Message: err.Error(), Code: "UNKNOWN"}

	var re recoverableError
	if errors.As(err, &re) {
		payload.Code = re.ErrorCode()
		payload.Context = re.Context()
		payload.SuggestedAction = re.SuggestedAction()
	}

	return Response{
		Schema: schemaURI("error"),
		Ok:     false,
		Error:  payload,
	}
}

// PrintWith prints a value as JSON to the configured writer.
func PrintWith(cfg Config, v interface{}) error {
	enc := json.NewEncoder(cfg.Writer)
	if cfg.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Print prints a value as JSON to stdout.
// Default to compact JSON to minimize output size for agent consumption.
// Enable pretty JSON for humans via env var: ZJJ_PRETTY_JSON=1.
func Print(v interface{}) error {
	return PrintWith(DefaultConfig(), v)
}

// PrintSuccess prints a success response.
func PrintSuccess(data interface{}) error {
	return Print(Success(data))
}

// PrintError prints an error response.
func PrintError(err error) error {
	return Print(Error(err))
}

// Keep output package focused: commands should handle human-readable formatting.
