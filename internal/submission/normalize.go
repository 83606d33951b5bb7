package submission

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/open-job-board/internal/api/model"
	"github.com/lib/pq"
)

// Normalize flattens a validated Submission into a JobRecord.
// Absent optional fields become nil, absent lists become empty.
func Normalize(s *Submission) model.JobRecord {
	rec := model.JobRecord{
		Source:           s.Origin.Source,
		Reference:        s.Origin.Reference,
		Contact:          marshalOptional(s.Origin.Contact),
		Title:            s.Title,
		Description:      s.Description,
		Responsibilities: pq.StringArray(orEmpty(s.Responsibilities)),
		Benefits:         pq.StringArray(orEmpty(s.Benefits)),
		EmploymentType:   s.EmploymentType,
		CompanyLocations: pq.StringArray{},
		Requirements:     marshalOptional(s.Requirements),
		PostedAt:         parseTimestamp(s.PostedAt),
		ParsedAt:         parseTimestamp(s.ParsedAt),
	}

	if c := s.Company; c != nil {
		rec.CompanyName = c.Name
		rec.CompanyWebsite = c.Website
		rec.CompanySector = c.Sector
		rec.CompanyAnecdote = c.Anecdote
		rec.CompanyLocations = pq.StringArray(orEmpty(c.Location))
	}

	if l := s.Location; l != nil {
		rec.LocationCity = l.City
		rec.LocationCountry = l.Country
		if l.Remote != nil {
			rec.RemoteFull = l.Remote.Full
			rec.RemoteDays = wholeDays(l.Remote.Days)
		}
	}

	if sal := s.Salary; sal != nil {
		rec.SalaryCurrency = sal.Currency
		rec.SalaryMin = sal.Min
		rec.SalaryMax = sal.Max
		rec.SalaryPeriod = sal.Period
	}

	return rec
}

// marshalOptional encodes a sub-record for a jsonb column, nil for absent.
func marshalOptional[T any](v *T) model.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return model.JSON(data)
}

// wholeDays narrows a validated day count to the integer column type.
func wholeDays(d *float64) *int {
	if d == nil {
		return nil
	}
	n := int(*d)
	return &n
}

func parseTimestamp(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(TimestampLayout, *s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
