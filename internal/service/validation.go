package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/alexanderramin/strata/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("field"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct checks s against its validate tags and reports the first
// failing field as a VALIDATION error keyed by its field tag.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validating input: %w", err)
	}
	fe := verrs[0]
	return domain.Validation(fe.Field(), formatValidationError(fe))
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

type taskInput struct {
	TenantID          string `field:"tenant" validate:"required"`
	ProjectID         string `field:"project" validate:"required"`
	Name              string `field:"name" validate:"required,max=255"`
	DurationUnit      string `field:"duration_unit" validate:"omitempty,oneof=Weeks Days Hours Minutes"`
	DurationEstimate  *int   `field:"duration_estimate" validate:"omitempty,min=0"`
	DurationActual    *int   `field:"duration_actual" validate:"omitempty,min=0"`
	OrderIndex        int    `field:"order" validate:"min=0"`
	CompletionPercent int    `field:"completion_percent" validate:"min=0,max=100"`
}

func validateTask(t *domain.Task) error {
	return validateStruct(taskInput{
		TenantID:          t.TenantID,
		ProjectID:         t.ProjectID,
		Name:              t.Name,
		DurationUnit:      string(t.DurationUnit),
		DurationEstimate:  t.DurationEstimate,
		DurationActual:    t.DurationActual,
		OrderIndex:        t.OrderIndex,
		CompletionPercent: t.CompletionPercent,
	})
}

type statusInput struct {
	TenantID    string `field:"tenant" validate:"required"`
	ProjectID   string `field:"project" validate:"required"`
	Name        string `field:"name" validate:"required,max=255"`
	OrderIndex  int    `field:"order" validate:"min=0"`
	RottingDays int    `field:"rotting_days" validate:"min=0"`
}

func validateStatus(s *domain.TaskStatus) error {
	return validateStruct(statusInput{
		TenantID:    s.TenantID,
		ProjectID:   s.ProjectID,
		Name:        s.Name,
		OrderIndex:  s.OrderIndex,
		RottingDays: s.RottingDays,
	})
}

type backlogInput struct {
	TenantID    string `field:"tenant" validate:"required"`
	HLRID       string `field:"hlr" validate:"required"`
	Name        string `field:"name" validate:"required,max=255"`
	OrderIndex  int    `field:"order" validate:"min=0"`
	StoryPoints *int   `field:"story_points" validate:"omitempty,min=0"`
}

func validateBacklog(b *domain.Backlog) error {
	return validateStruct(backlogInput{
		TenantID:    b.TenantID,
		HLRID:       b.HLRID,
		Name:        b.Name,
		OrderIndex:  b.OrderIndex,
		StoryPoints: b.StoryPoints,
	})
}

type projectInput struct {
	TenantID string `field:"tenant" validate:"required"`
	Name     string `field:"name" validate:"required,max=255"`
}

func validateProject(p *domain.Project) error {
	return validateStruct(projectInput{TenantID: p.TenantID, Name: p.Name})
}
