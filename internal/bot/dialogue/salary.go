package dialogue

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	digitsRegexp = regexp.MustCompile(`\d+`)
	// "100 000" and "1 000 000" are one number.
	digitGroupRegexp = regexp.MustCompile(`(\d)[ \x{00a0}](\d{3})(\D|$)`)
)

// Salary is a parsed salary expression. Either bound may be absent.
type Salary struct {
	Min *int
	Max *int
}

func (s Salary) Empty() bool {
	return s.Min == nil && s.Max == nil
}

// ParseSalary reads free-form salary text:
//
//	"от 100000"            floor
//	"до 200000"            ceiling
//	"от 100000 до 150000"  floor and ceiling
//	"100000-150000"        floor and ceiling
//	"120000"               floor
//
// Text without a number yields an empty Salary.
func ParseSalary(text string) Salary {
	clean := strings.ToLower(strings.TrimSpace(text))
	for {
		joined := digitGroupRegexp.ReplaceAllString(clean, "$1$2$3")
		if joined == clean {
			break
		}
		clean = joined
	}

	var numbers []int
	for _, raw := range digitsRegexp.FindAllString(clean, -1) {
		// Amounts are stored in 32-bit columns.
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			continue
		}
		numbers = append(numbers, int(n))
	}
	if len(numbers) == 0 {
		return Salary{}
	}

	from := hasWord(clean, "от")
	to := hasWord(clean, "до")

	var s Salary
	switch {
	case from && to && len(numbers) >= 2:
		s.Min, s.Max = &numbers[0], &numbers[1]
	case from && to:
		// "от 100000 до" still names a floor
		if strings.Index(clean, "до") < strings.Index(clean, "от") {
			s.Max = &numbers[0]
		} else {
			s.Min = &numbers[0]
		}
	case from:
		s.Min = &numbers[0]
	case to:
		s.Max = &numbers[0]
	case len(numbers) >= 2 && strings.ContainsAny(clean, "-–—"):
		s.Min, s.Max = &numbers[0], &numbers[1]
	default:
		s.Min = &numbers[0]
	}

	if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
		s.Min, s.Max = s.Max, s.Min
	}

	return s
}

// hasWord reports whether word appears in text outside of a longer word,
// so "до" does not match inside "доход".
func hasWord(text, word string) bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'а' && r <= 'я' || r == 'ё' || r >= 'a' && r <= 'z')
	})
	for _, f := range fields {
		if f == word {
			return true
		}
	}
	return false
}
