// Package matcher decides whether a job posting satisfies a subscription.
package matcher

import (
	"strings"

	"jobboard-bot/internal/models"

	"golang.org/x/text/cases"
)

// Matches reports whether job satisfies every criterion of sub. Positive
// criteria are AND-combined; a blacklisted company or an excluded keyword
// rejects the job outright.
func Matches(job *models.JobPosting, sub *models.Subscription) bool {
	if job == nil || sub == nil {
		return false
	}

	fold := cases.Fold()
	title := fold.String(job.Title)
	description := fold.String(job.Description)
	company := fold.String(job.Company)

	if kw := normalize(fold, sub.Keywords); kw != "" {
		if !strings.Contains(title, kw) && !strings.Contains(description, kw) {
			return false
		}
	}

	if loc := normalize(fold, sub.Location); loc != "" {
		if !strings.Contains(fold.String(job.Location), loc) {
			return false
		}
	}

	if c := normalize(fold, sub.Company); c != "" {
		if !strings.Contains(company, c) {
			return false
		}
	}

	// A job without a declared minimum never satisfies a salary floor.
	// A zero floor is no floor.
	if sub.MinSalary != nil && *sub.MinSalary > 0 {
		if job.SalaryMin == nil || *job.SalaryMin < *sub.MinSalary {
			return false
		}
	}

	if sub.RemoteOnly && !job.Remote {
		return false
	}

	if sub.FeaturedOnly && !job.Featured {
		return false
	}

	for _, blocked := range sub.CompanyBlacklist {
		if b := normalize(fold, blocked); b != "" && strings.Contains(company, b) {
			return false
		}
	}

	for _, excluded := range sub.ExcludeKeywords {
		if e := normalize(fold, excluded); e != "" {
			if strings.Contains(title, e) || strings.Contains(description, e) {
				return false
			}
		}
	}

	return true
}

// Filter returns the jobs matching sub, preserving order.
func Filter(jobs []models.JobPosting, sub *models.Subscription) []models.JobPosting {
	var matched []models.JobPosting
	for i := range jobs {
		if Matches(&jobs[i], sub) {
			matched = append(matched, jobs[i])
		}
	}
	return matched
}

func normalize(fold cases.Caser, s string) string {
	return fold.String(strings.TrimSpace(s))
}
