package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/voicemeter/internal/observe"
	"github.com/MrWong99/voicemeter/internal/transcribe"
	"github.com/MrWong99/voicemeter/pkg/types"
)

// Error codes outside the analysis taxonomy.
const (
	codeTooLarge      = "PAYLOAD_TOO_LARGE"
	codeTranscription = "TRANSCRIPTION_ERROR"
	codeCanceled      = "CANCELED"
	codeInternal      = "INTERNAL"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps err onto an HTTP status and error code.
//
//	ValidationError        400
//	AudioProcessingError   422
//	AnalysisError          422
//	empty audio            422
//	transcription failure  502
func statusFor(err error) (int, string) {
	var (
		verr *types.ValidationError
		aerr *types.AudioProcessingError
		nerr *types.AnalysisError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Code()
	case errors.As(err, &aerr):
		return http.StatusUnprocessableEntity, aerr.Code()
	case errors.As(err, &nerr):
		return http.StatusUnprocessableEntity, nerr.Code()
	case errors.Is(err, transcribe.ErrEmptyAudio):
		return http.StatusUnprocessableEntity, types.CodeAudioProcessing
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, codeCanceled
	case errors.Is(err, transcribe.ErrFailed):
		return http.StatusBadGateway, codeTranscription
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeTaxonomyError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(ctx).Error("analysis request failed", "code", code, "err", err)
	}
	writeError(w, status, code, err.Error())
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
