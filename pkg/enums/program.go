package enums

import "fmt"

// ProgramStatus mirrors the program_status column.
type ProgramStatus string

const (
	ProgramStatusDraft     ProgramStatus = "draft"
	ProgramStatusUpcoming  ProgramStatus = "upcoming"
	ProgramStatusActive    ProgramStatus = "active"
	ProgramStatusInactive  ProgramStatus = "inactive"
	ProgramStatusCompleted ProgramStatus = "completed"
	ProgramStatusCancelled ProgramStatus = "cancelled"
)

var validProgramStatuses = []ProgramStatus{
	ProgramStatusDraft,
	ProgramStatusUpcoming,
	ProgramStatusActive,
	ProgramStatusInactive,
	ProgramStatusCompleted,
	ProgramStatusCancelled,
}

func (s ProgramStatus) String() string {
	return string(s)
}

func (s ProgramStatus) IsValid() bool {
	for _, candidate := range validProgramStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseProgramStatus(value string) (ProgramStatus, error) {
	for _, candidate := range validProgramStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid program status %q", value)
}

// ProgramCategory groups livelihood offerings.
type ProgramCategory string

const (
	ProgramCategorySkillsTraining ProgramCategory = "skills_training"
	ProgramCategoryAgriculture    ProgramCategory = "agriculture"
	ProgramCategoryBusiness       ProgramCategory = "business"
	ProgramCategoryFoodTechnology ProgramCategory = "food_technology"
	ProgramCategoryHandicrafts    ProgramCategory = "handicrafts"
	ProgramCategoryTechnology     ProgramCategory = "technology"
)

var validProgramCategories = []ProgramCategory{
	ProgramCategorySkillsTraining,
	ProgramCategoryAgriculture,
	ProgramCategoryBusiness,
	ProgramCategoryFoodTechnology,
	ProgramCategoryHandicrafts,
	ProgramCategoryTechnology,
}

func (c ProgramCategory) String() string {
	return string(c)
}

func (c ProgramCategory) IsValid() bool {
	for _, candidate := range validProgramCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseProgramCategory(value string) (ProgramCategory, error) {
	for _, candidate := range validProgramCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid program category %q", value)
}
