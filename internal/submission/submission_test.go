package submission

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cuongbtq/open-job-board/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalBody = `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things."}`

const fullBody = `{
	"origin": {"source": "acme", "reference": "ref-1", "contact": {"name": "Jo", "email": "jo@acme.io"}},
	"title": "Backend Engineer",
	"description": "Build and operate ingestion services.",
	"responsibilities": ["ship code", "review code"],
	"company": {"name": "Acme", "website": "https://acme.io", "sector": "Software", "location": ["Paris", "Lyon"]},
	"employment_type": "full-time",
	"location": {"city": "Paris", "country": "FR", "remote": {"full": false, "days": 2}},
	"requirements": {"hard_skills": ["go", "sql"]},
	"salary": {"currency": "EUR", "min": 0, "max": 70000, "period": "yearly"},
	"benefits": ["lunch"],
	"posted_at": "2024-05-01T10:00:00+02:00",
	"parsed_at": "2024-05-02T08:30:00Z"
}`

func newValidator() *Validator {
	return NewValidator(validation.New())
}

func parse(t *testing.T, body string) any {
	t.Helper()
	doc, err := validation.ParseJSON([]byte(body))
	require.NoError(t, err)
	return doc
}

func violatedFields(t *testing.T, err error) []string {
	t.Helper()
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)

	out := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		out = append(out, v.Field)
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{
			name: "minimal submission",
			body: minimalBody,
		},
		{
			name: "full submission",
			body: fullBody,
		},
		{
			name:       "empty object names every required field",
			body:       `{}`,
			wantFields: []string{"origin.source", "title", "description"},
		},
		{
			name:       "negative salary minimum",
			body:       `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","salary":{"min":-1}}`,
			wantFields: []string{"salary.min"},
		},
		{
			name: "zero salary minimum",
			body: `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","salary":{"min":0}}`,
		},
		{
			name:       "remote days above range",
			body:       `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","location":{"remote":{"days":8}}}`,
			wantFields: []string{"location.remote.days"},
		},
		{
			name: "remote days at upper bound",
			body: `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","location":{"remote":{"days":7}}}`,
		},
		{
			name: "remote days written as a whole float",
			body: `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","location":{"remote":{"days":3.0}}}`,
		},
		{
			name:       "fractional remote days",
			body:       `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","location":{"remote":{"days":3.5}}}`,
			wantFields: []string{"location.remote.days"},
		},
		{
			name:       "remote days below range",
			body:       `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","location":{"remote":{"days":-1}}}`,
			wantFields: []string{"location.remote.days"},
		},
		{
			name:       "unknown salary period",
			body:       `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","salary":{"period":"biweekly"}}`,
			wantFields: []string{"salary.period"},
		},
		{
			name:       "invalid contact email",
			body:       `{"origin":{"source":"acme","contact":{"email":"nope"}},"title":"Engineer","description":"Build things."}`,
			wantFields: []string{"origin.contact.email"},
		},
		{
			name:       "invalid company website",
			body:       `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","company":{"website":"acme"}}`,
			wantFields: []string{"company.website"},
		},
		{
			name:       "non timestamp posted_at",
			body:       `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","posted_at":"yesterday"}`,
			wantFields: []string{"posted_at"},
		},
		{
			name:       "too many benefits",
			body:       `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","benefits":[` + strings.TrimSuffix(strings.Repeat(`"b",`, 51), ",") + `]}`,
			wantFields: []string{"benefits"},
		},
		{
			name:       "short title and description together",
			body:       `{"origin":{"source":"acme"},"title":"E","description":"short"}`,
			wantFields: []string{"title", "description"},
		},
		{
			name:       "wrong types are reported per field",
			body:       `{"origin":{"source":7},"title":["x"],"description":"Build things.","salary":{"min":"lots"}}`,
			wantFields: []string{"origin.source", "salary.min", "title"},
		},
	}

	v := newValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := v.Validate(parse(t, tt.body))

			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				require.NotNil(t, s)
				return
			}

			require.Error(t, err)
			assert.Nil(t, s)
			assert.ElementsMatch(t, tt.wantFields, violatedFields(t, err))
		})
	}
}

func TestValidate_DefaultsEmptyLists(t *testing.T) {
	s, err := newValidator().Validate(parse(t,
		`{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","company":{"name":"Acme"},"requirements":{}}`))
	require.NoError(t, err)

	assert.NotNil(t, s.Responsibilities)
	assert.Empty(t, s.Responsibilities)
	assert.NotNil(t, s.Benefits)
	assert.NotNil(t, s.Company.Location)
	assert.NotNil(t, s.Requirements.Qualifications)
	assert.NotNil(t, s.Requirements.Others)
}

func TestValidate_RemoteDaysIntegral(t *testing.T) {
	const tmpl = `{"origin":{"source":"acme"},"title":"Engineer","description":"Build things.","location":{"remote":{"days":%s}}}`
	v := newValidator()

	s, err := v.Validate(parse(t, fmt.Sprintf(tmpl, "3.0")))
	require.NoError(t, err)
	rec := Normalize(s)
	require.NotNil(t, rec.RemoteDays)
	assert.Equal(t, 3, *rec.RemoteDays)

	_, err = v.Validate(parse(t, fmt.Sprintf(tmpl, "3.5")))
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "location.remote.days", verr.Violations[0].Field)
	assert.Equal(t, "int", verr.Violations[0].Constraint)
	assert.Equal(t, "must be an integer", verr.Violations[0].Message)
}

func TestNormalize_Minimal(t *testing.T) {
	s, err := newValidator().Validate(parse(t, minimalBody))
	require.NoError(t, err)

	rec := Normalize(s)

	assert.Equal(t, "acme", rec.Source)
	assert.Nil(t, rec.Reference)
	assert.Nil(t, rec.Contact)
	assert.Equal(t, "Engineer", rec.Title)
	assert.Equal(t, "Build things.", rec.Description)
	assert.Empty(t, rec.Responsibilities)
	assert.NotNil(t, rec.Responsibilities)
	assert.NotNil(t, rec.CompanyLocations)
	assert.Nil(t, rec.CompanyName)
	assert.Nil(t, rec.RemoteDays)
	assert.Nil(t, rec.Requirements)
	assert.Nil(t, rec.SalaryMin)
	assert.Nil(t, rec.PostedAt)
}

func TestNormalize_Full(t *testing.T) {
	s, err := newValidator().Validate(parse(t, fullBody))
	require.NoError(t, err)

	rec := Normalize(s)

	require.NotNil(t, rec.Reference)
	assert.Equal(t, "ref-1", *rec.Reference)
	assert.JSONEq(t, `{"name":"Jo","email":"jo@acme.io"}`, string(rec.Contact))
	assert.Equal(t, []string{"ship code", "review code"}, []string(rec.Responsibilities))
	assert.Equal(t, "Acme", *rec.CompanyName)
	assert.Equal(t, "https://acme.io", *rec.CompanyWebsite)
	assert.Nil(t, rec.CompanyAnecdote)
	assert.Equal(t, []string{"Paris", "Lyon"}, []string(rec.CompanyLocations))
	assert.Equal(t, "Paris", *rec.LocationCity)
	assert.Equal(t, "FR", *rec.LocationCountry)
	assert.False(t, *rec.RemoteFull)
	assert.Equal(t, 2, *rec.RemoteDays)
	assert.JSONEq(t, `{"qualifications":[],"hard_skills":["go","sql"],"soft_skills":[],"others":[]}`, string(rec.Requirements))
	assert.Equal(t, "EUR", *rec.SalaryCurrency)
	assert.Equal(t, 0.0, *rec.SalaryMin)
	assert.Equal(t, 70000.0, *rec.SalaryMax)
	assert.Equal(t, PeriodYearly, *rec.SalaryPeriod)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), *rec.PostedAt)
	assert.Equal(t, time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC), *rec.ParsedAt)
}

func TestNormalize_Idempotent(t *testing.T) {
	v := newValidator()

	for _, body := range []string{minimalBody, fullBody} {
		s, err := v.Validate(parse(t, body))
		require.NoError(t, err)
		first := Normalize(s)

		assert.Equal(t, first, Normalize(s))

		encoded, err := json.Marshal(s)
		require.NoError(t, err)

		again, err := v.Validate(parse(t, string(encoded)))
		require.NoError(t, err)

		assert.Equal(t, first, Normalize(again))
	}
}
