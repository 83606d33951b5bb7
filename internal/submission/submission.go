// Package submission defines the wire shape of a submitted job offer and
// turns it into the flat record stored in the jobs table.
package submission

import (
	"github.com/cuongbtq/open-job-board/internal/validation"
)

// Accepted salary periods
const (
	PeriodHourly  = "hourly"
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

// TimestampLayout is the accepted format of posted_at and parsed_at.
const TimestampLayout = "2006-01-02T15:04:05Z07:00"

type Contact struct {
	Name  *string `json:"name,omitempty" validate:"omitnil,max=200"`
	Email *string `json:"email,omitempty" validate:"omitnil,email,max=320"`
	Phone *string `json:"phone,omitempty" validate:"omitnil,max=50"`
}

type Origin struct {
	Source    string   `json:"source" validate:"required,min=1,max=200"`
	Reference *string  `json:"reference" validate:"omitnil,max=500"`
	Contact   *Contact `json:"contact"`
}

type Company struct {
	Name     *string  `json:"name" validate:"omitnil,max=300"`
	Website  *string  `json:"website" validate:"omitnil,url,max=2000"`
	Sector   *string  `json:"sector" validate:"omitnil,max=200"`
	Anecdote *string  `json:"anecdote" validate:"omitnil,max=2000"`
	Location []string `json:"location" validate:"max=20,dive,max=200"`
}

type Remote struct {
	Full *bool    `json:"full"`
	Days *float64 `json:"days" validate:"omitnil,int,min=0,max=7"`
}

type Location struct {
	City    *string `json:"city" validate:"omitnil,max=200"`
	Country *string `json:"country" validate:"omitnil,max=200"`
	Remote  *Remote `json:"remote"`
}

type Requirements struct {
	Qualifications []string `json:"qualifications" validate:"max=50,dive,max=500"`
	HardSkills     []string `json:"hard_skills" validate:"max=100,dive,max=200"`
	SoftSkills     []string `json:"soft_skills" validate:"max=50,dive,max=200"`
	Others         []string `json:"others" validate:"max=50,dive,max=500"`
}

type Salary struct {
	Currency *string  `json:"currency" validate:"omitnil,max=10"`
	Min      *float64 `json:"min" validate:"omitnil,min=0"`
	Max      *float64 `json:"max" validate:"omitnil,min=0"`
	Period   *string  `json:"period" validate:"omitnil,oneof=hourly daily weekly monthly yearly"`
}

// Submission is one externally observed job offer.
type Submission struct {
	Origin           Origin        `json:"origin"`
	Title            string        `json:"title" validate:"required,min=2,max=500"`
	Description      string        `json:"description" validate:"required,min=10,max=100000"`
	Responsibilities []string      `json:"responsibilities" validate:"max=50,dive,max=500"`
	Company          *Company      `json:"company"`
	EmploymentType   *string       `json:"employment_type" validate:"omitnil,max=100"`
	Location         *Location     `json:"location"`
	Requirements     *Requirements `json:"requirements"`
	Salary           *Salary       `json:"salary"`
	Benefits         []string      `json:"benefits" validate:"max=50,dive,max=300"`
	PostedAt         *string       `json:"posted_at" validate:"omitnil,datetime=2006-01-02T15:04:05Z07:00"`
	ParsedAt         *string       `json:"parsed_at" validate:"omitnil,datetime=2006-01-02T15:04:05Z07:00"`
}

// Validator checks raw documents against the Submission contract.
type Validator struct {
	v *validation.Validator
}

func NewValidator(v *validation.Validator) *Validator {
	return &Validator{v: v}
}

// Validate coerces doc into a Submission. On failure the returned error is a
// *validation.Error listing every violation. Absent lists default to empty.
func (sv *Validator) Validate(doc any) (*Submission, error) {
	var s Submission
	if err := sv.v.Decode(doc, &s); err != nil {
		return nil, err
	}
	s.applyDefaults()
	return &s, nil
}

func (s *Submission) applyDefaults() {
	s.Responsibilities = orEmpty(s.Responsibilities)
	s.Benefits = orEmpty(s.Benefits)

	if s.Company != nil {
		s.Company.Location = orEmpty(s.Company.Location)
	}
	if s.Requirements != nil {
		s.Requirements.Qualifications = orEmpty(s.Requirements.Qualifications)
		s.Requirements.HardSkills = orEmpty(s.Requirements.HardSkills)
		s.Requirements.SoftSkills = orEmpty(s.Requirements.SoftSkills)
		s.Requirements.Others = orEmpty(s.Requirements.Others)
	}
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
