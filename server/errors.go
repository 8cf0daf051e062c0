package server

import (
	"errors"
	"net/http"

	"github.com/aouyang1/go-marketmaster"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

var (
	ErrDecodeBody = errors.New("unable to decode request body")
	ErrNoFile     = errors.New("no file in upload")
)

const (
	levelError   = "error"
	levelWarning = "warning"
)

// FieldError is one failed request field
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Problem is the JSON body of every failed request
type Problem struct {
	Status int          `json:"status"`
	Title  string       `json:"title"`
	Detail string       `json:"detail"`
	Level  string       `json:"level"`
	Stage  string       `json:"stage,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
}

func (p *Problem) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, p.Status)
	return nil
}

// problem maps an error to its response. Locked stages are a warning, not a failure.
func problem(err error) *Problem {
	p := &Problem{Detail: err.Error(), Level: levelError}

	var se *marketmaster.StageError
	if errors.As(err, &se) {
		p.Stage = se.Stage.String()
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		p.Status, p.Title = http.StatusUnprocessableEntity, "validation failed"
		for _, fe := range verrs {
			p.Fields = append(p.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
	case errors.Is(err, ErrSessionNotFound):
		p.Status, p.Title = http.StatusNotFound, "session not found"
	case errors.Is(err, ErrDecodeBody), errors.Is(err, ErrNoFile):
		p.Status, p.Title = http.StatusBadRequest, "bad request"
	case errors.Is(err, marketmaster.ErrStageLocked):
		p.Status, p.Title, p.Level = http.StatusConflict, "stage locked", levelWarning
	case errors.Is(err, marketmaster.ErrExternal):
		p.Status, p.Title = http.StatusBadGateway, "external dependency failed"
	case errors.Is(err, marketmaster.ErrModel):
		p.Status, p.Title = http.StatusUnprocessableEntity, "model failed"
	case errors.Is(err, marketmaster.ErrValidation):
		p.Status, p.Title = http.StatusUnprocessableEntity, "invalid input"
	default:
		p.Status, p.Title = http.StatusInternalServerError, "internal error"
	}
	return p
}
