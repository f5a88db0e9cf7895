package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/openclaw/tg-relay-go/internal/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// text accepts a JSON string or number and trims surrounding whitespace, so
// user ids may be sent either way.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("expected a string or number")
	}
	*t = text(n.String())
	return nil
}

// apiID accepts the application id as a JSON number or numeric string.
type apiID int

func (a *apiID) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*a = apiID(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("api_id must be an integer")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*a = 0
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.New("api_id must be an integer")
	}
	*a = apiID(n)
	return nil
}

// decodeRequest parses the body into dst and validates it. Absent required
// fields are reported together, under the name of the request's intent.
func decodeRequest(r *http.Request, intent string, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.InvalidInput("body", "request body too large")
		}
		return apperrors.InvalidInput("body", err.Error())
	}

	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.ValidationError(err.Error())
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if strings.HasPrefix(fe.Tag(), "required") {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if len(missing) > 0 {
		return apperrors.MissingFields(intent, missing)
	}
	return apperrors.ValidationError(fmt.Sprintf("%s: invalid fields", intent)).
		WithDetails(map[string]any{"invalid": invalid})
}
