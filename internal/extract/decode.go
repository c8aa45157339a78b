package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/josephgoksu/taskmail/internal/task"
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return isoDate.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("parent_action", func(fl validator.FieldLevel) bool {
		return task.ParentAction(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("student_action", func(fl validator.FieldLevel) bool {
		return task.StudentAction(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("requirement_level", func(fl validator.FieldLevel) bool {
		return task.RequirementLevel(fl.Field().String()).Valid()
	})
	return v
}

// decodeResponse parses and validates a model response. Any violation
// rejects the whole response; nothing partial is returned.
func decodeResponse(v *validator.Validate, content string) ([]Candidate, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode response: trailing data after JSON object")
	}
	if err := v.Struct(&env); err != nil {
		return nil, fmt.Errorf("validate response: %s", formatValidation(err))
	}
	return env.Tasks, nil
}

func formatValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return strings.Join(msgs, "; ")
}
