package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type JobPosting struct {
	ID          int64     `db:"id"`
	EmployerID  int64     `db:"employer_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Company     string    `db:"company"`
	Location    string    `db:"location"`
	SalaryMin   *int      `db:"salary_min"`
	SalaryMax   *int      `db:"salary_max"`
	Remote      bool      `db:"is_remote"`
	Featured    bool      `db:"is_featured"`
	Active      bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// JobOrder selects the ordering of QueryJobs results.
type JobOrder int

const (
	OrderCreatedDesc JobOrder = iota
	OrderCreatedAsc
)

// JobFilter narrows a job query. Zero values mean "no restriction".
type JobFilter struct {
	ActiveOnly    bool
	CreatedSince  *time.Time // inclusive
	CreatedBefore *time.Time // exclusive
	EmployerID    int64
	OrderBy       JobOrder
	Limit         int
}

// SalaryRange renders the posting's salary for display.
func (j *JobPosting) SalaryRange() string {
	switch {
	case j.SalaryMin != nil && j.SalaryMax != nil:
		return fmt.Sprintf("%s - %s руб.", FormatAmount(*j.SalaryMin), FormatAmount(*j.SalaryMax))
	case j.SalaryMin != nil:
		return fmt.Sprintf("от %s руб.", FormatAmount(*j.SalaryMin))
	case j.SalaryMax != nil:
		return fmt.Sprintf("до %s руб.", FormatAmount(*j.SalaryMax))
	default:
		return "по договорённости"
	}
}

// FormatAmount groups thousands with spaces: 150000 -> "150 000".
func FormatAmount(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if n < 0 {
		neg = true
		s = s[1:]
	}

	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, s[i])
	}

	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// StringList is stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}

	if len(data) == 0 {
		*l = nil
		return nil
	}

	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}
	*l = items
	return nil
}
