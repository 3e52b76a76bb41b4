package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"assessment-engine/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		msg = http.StatusText(status)
	}
	respondJSON(w, status, errorBody{Error: msg})
}

func statusFromError(err error) int {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, domain.ErrAssessmentNotFound),
		errors.Is(err, domain.ErrSubmissionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrProblemNotFound),
		errors.Is(err, domain.ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCandidateNotAllowed),
		errors.Is(err, domain.ErrAssessmentNotOpen),
		errors.Is(err, domain.ErrAssessmentClosed),
		errors.Is(err, domain.ErrRunNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicateSubmission),
		errors.Is(err, domain.ErrAttemptSubmitted),
		errors.Is(err, domain.ErrRewardAlreadyIssued):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAnswerKindMismatch),
		errors.Is(err, domain.ErrNotReviewable),
		errors.Is(err, domain.ErrMarkOutOfRange),
		errors.Is(err, domain.ErrNotGraded),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func errBadRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}
