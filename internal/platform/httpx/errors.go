package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrBadRequest marks a request that could not be decoded.
var ErrBadRequest = errors.New("malformed request")

// Mapping binds a sentinel error to the response it produces.
type Mapping struct {
	Target error
	Status int
	Title  string
}

// ErrorMapper maps domain errors to HTTP responses using RFC7807. The first
// matching entry wins.
type ErrorMapper struct {
	Mappings []Mapping
	Logger   *slog.Logger
}

// Respond writes the problem response for err.
func (m ErrorMapper) Respond(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		ValidationProblem(w, verrs)
		return
	}
	if errors.Is(err, ErrBadRequest) {
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	for _, mp := range m.Mappings {
		if errors.Is(err, mp.Target) {
			Problem(w, mp.Status, mp.Title, err.Error())
			return
		}
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("unhandled request error", slog.String("path", r.URL.Path), slog.Any("error", err))
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// ValidationProblem reports struct validation failures per field.
func ValidationProblem(w http.ResponseWriter, verrs validator.ValidationErrors) {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	WriteProblem(w, ProblemDetail{
		Title:  "Validation Failed",
		Status: http.StatusBadRequest,
		Fields: fields,
	})
}
