package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

func NewBusinessValidator() *BusinessValidator {
	bv := &BusinessValidator{validate: validator.New()}
	bv.registerBusinessRules()
	return bv
}

// Validate validates struct tags
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	if err := bv.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateExam checks the request tags and the section structure
func (bv *BusinessValidator) ValidateExam(req *ExamRequest) ValidationErrors {
	var errs ValidationErrors
	errs = append(errs, bv.Validate(req)...)
	errs = append(errs, ValidateExamSections(req.Sections)...)
	return errs
}

func (bv *BusinessValidator) registerBusinessRules() {
	bv.validate.RegisterValidation("exam_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	bv.validate.RegisterValidation("result_policy", func(fl validator.FieldLevel) bool {
		switch models.ResultPolicy(fl.Field().String()) {
		case models.ResultPolicyScoresOnly, models.ResultPolicyCorrectAnswers,
			models.ResultPolicyExplanations, models.ResultPolicyDelayed:
			return true
		}
		return false
	})
}

// ValidateExamSections enforces the structural rules every saved exam must
// satisfy: items XOR quota, positive quota, distribution summing to the
// quota, non-negative points, and each fixed question id listed once per exam.
func ValidateExamSections(sections []models.Section) ValidationErrors {
	var errs ValidationErrors
	listedIn := make(map[uint]int)

	if len(sections) == 0 {
		return append(errs, ValidationError{Field: "sections", Message: "must contain at least one section", Rule: "required"})
	}

	for i, section := range sections {
		field := fmt.Sprintf("sections[%d]", i)

		switch {
		case section.IsFixed() && section.IsQuota():
			errs = append(errs, ValidationError{Field: field, Message: "cannot declare both items and quota", Rule: "items_xor_quota"})
			continue
		case !section.IsFixed() && !section.IsQuota():
			errs = append(errs, ValidationError{Field: field, Message: "must declare items or quota", Rule: "items_xor_quota"})
			continue
		}

		if section.IsFixed() {
			seen := make(map[uint]bool, len(section.Items))
			for j, item := range section.Items {
				itemField := fmt.Sprintf("%s.items[%d]", field, j)
				if item.QuestionID == 0 {
					errs = append(errs, ValidationError{Field: itemField + ".question_id", Message: "is required", Rule: "required"})
				}
				if seen[item.QuestionID] {
					errs = append(errs, ValidationError{Field: itemField + ".question_id", Message: "is listed twice", Value: item.QuestionID, Rule: "unique"})
				} else if k, ok := listedIn[item.QuestionID]; ok && item.QuestionID != 0 {
					errs = append(errs, ValidationError{
						Field:   itemField + ".question_id",
						Message: fmt.Sprintf("is already listed in sections[%d]", k),
						Value:   item.QuestionID,
						Rule:    "unique",
					})
				}
				seen[item.QuestionID] = true
				if _, ok := listedIn[item.QuestionID]; !ok {
					listedIn[item.QuestionID] = i
				}
				if item.Points < 0 {
					errs = append(errs, ValidationError{Field: itemField + ".points", Message: "must not be negative", Value: item.Points, Rule: "gte"})
				}
			}
			if section.Distribution != nil {
				errs = append(errs, ValidationError{Field: field + ".distribution", Message: "only applies to quota sections", Rule: "quota_only"})
			}
			continue
		}

		quota := *section.Quota
		if quota <= 0 {
			errs = append(errs, ValidationError{Field: field + ".quota", Message: "must be positive", Value: quota, Rule: "min"})
		}
		if section.Points != nil && *section.Points < 0 {
			errs = append(errs, ValidationError{Field: field + ".points", Message: "must not be negative", Value: *section.Points, Rule: "gte"})
		}
		if d := section.Distribution; d != nil {
			if d.Easy < 0 || d.Medium < 0 || d.Hard < 0 {
				errs = append(errs, ValidationError{Field: field + ".distribution", Message: "counts must not be negative", Rule: "gte"})
			} else if d.Total() != quota {
				errs = append(errs, ValidationError{
					Field:   field + ".distribution",
					Message: fmt.Sprintf("must sum to the quota %d, got %d", quota, d.Total()),
					Value:   d.Total(),
					Rule:    "distribution_sum",
				})
			}
		}
		for j, tag := range section.Tags {
			if strings.TrimSpace(tag) == "" {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.tags[%d]", field, j), Message: "tag cannot be empty", Rule: "required"})
			}
		}
	}

	return errs
}
