// Package parse contains the pure text validators and intent classifiers for
// inbound WhatsApp-style free text. No function here has side effects.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Answer values recorded for the daily check-in and postpartum polls.
const (
	AnswerDone   = "Sudah"
	AnswerNotYet = "Belum"
)

var (
	yesRx = regexp.MustCompile(`\b(ya|iya|yes|y|ok|mau|boleh)\b`)
	// "belum" also carries check-in "not yet" intent; an onboarding yes/no
	// answer of "belum" is treated as "no" (product-level overlap, kept as-is).
	noRx = regexp.MustCompile(`\b(tidak|tdk|no|gak|ga|nggak|belum)\b`)

	bareHourRx  = regexp.MustCompile(`^\d{1,2}$`)
	colonTimeRx = regexp.MustCompile(`^\d{1,2}:\d{1,2}$`)
	digitRunRx  = regexp.MustCompile(`^\d{3,4}$`)

	ymdRx = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
	dmyRx = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)

	greetingRx = regexp.MustCompile(`^(halo|hai|hi|hey|hei|assalamualaikum|salam)$`)
	alwaysRx   = regexp.MustCompile(`^(help|menu|about|abotu|website|delete|hapus)$`)
	adminRx    = regexp.MustCompile(`^admin(?:\s+(.*))?$`)
)

// YesNo classifies free text as an affirmative or negative answer.
// The second return is false when the text matches neither set.
func YesNo(input string) (bool, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return false, false
	}
	if yesRx.MatchString(normalized) {
		return true, true
	}
	if noRx.MatchString(normalized) {
		return false, true
	}
	return false, false
}

// ClockTime normalizes clock-time input to zero-padded "HH:MM".
// Accepted forms: "7", "7:30", "17.05", "730", "1705".
func ClockTime(input string) (string, bool) {
	cleaned := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(input)), " ", "")
	cleaned = strings.ReplaceAll(cleaned, ".", ":")
	if cleaned == "" {
		return "", false
	}

	var hour, minute int
	switch {
	case bareHourRx.MatchString(cleaned):
		hour, _ = strconv.Atoi(cleaned)
	case colonTimeRx.MatchString(cleaned):
		parts := strings.SplitN(cleaned, ":", 2)
		hour, _ = strconv.Atoi(parts[0])
		minute, _ = strconv.Atoi(parts[1])
	case digitRunRx.MatchString(cleaned):
		split := 1
		if len(cleaned) == 4 {
			split = 2
		}
		hour, _ = strconv.Atoi(cleaned[:split])
		minute, _ = strconv.Atoi(cleaned[split:])
	default:
		return "", false
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", false
	}
	return padTwo(hour) + ":" + padTwo(minute), true
}

func padTwo(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// Date is a parsed calendar date: the original text plus the canonical
// "YYYY-MM-DD" day key, empty when the input was not a valid date.
type Date struct {
	Raw string
	Day string
}

func (d Date) Valid() bool { return d.Day != "" }

// CalendarDate accepts "YYYY-MM-DD"/"YYYY/MM/DD" and "DD-MM-YYYY"/"DD/MM/YYYY"
// and rejects calendrically invalid dates (month 13, day 99, ...).
func CalendarDate(input string) Date {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Date{}
	}

	var year, month, day int
	if m := ymdRx.FindStringSubmatch(raw); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else if m := dmyRx.FindStringSubmatch(raw); m != nil {
		day, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
	} else {
		return Date{Raw: raw}
	}

	candidate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if candidate.Year() != year || candidate.Month() != time.Month(month) || candidate.Day() != day {
		return Date{Raw: raw}
	}
	return Date{Raw: raw, Day: candidate.Format("2006-01-02")}
}

// CheckinAnswer recognizes "done"/"not done" intent from loose text.
// "udah" covers the common dropped-prefix spelling of "sudah".
func CheckinAnswer(input string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	if strings.Contains(normalized, "sudah") || strings.Contains(normalized, "udah") {
		return AnswerDone, true
	}
	if strings.Contains(normalized, "belum") {
		return AnswerNotYet, true
	}
	return "", false
}

// DeliveryAnswer recognizes delivered / not-yet-delivered intent. It requires
// an explicit delivery keyword so plain check-in answers ("sudah") do not
// collide with the delivery-validation poll.
func DeliveryAnswer(input string) (bool, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" || !strings.Contains(normalized, "lahir") {
		return false, false
	}
	if strings.Contains(normalized, "belum") {
		return false, true
	}
	if strings.Contains(normalized, "sudah") || strings.Contains(normalized, "udah") {
		return true, true
	}
	return false, false
}

// Greeting reports whether the text is a bare salutation from a new sender.
func Greeting(input string) bool {
	return greetingRx.MatchString(strings.ToLower(strings.TrimSpace(input)))
}

// AlwaysCommand reports whether the text is a command that stays available
// even mid-onboarding.
func AlwaysCommand(input string) bool {
	return alwaysRx.MatchString(strings.ToLower(strings.TrimSpace(input)))
}

// AdminCommand is a parsed "admin ..." chat command.
type AdminCommand struct {
	Action  string
	Args    []string
	RawArgs string
}

// ParseAdminCommand returns nil when the text is not an admin command.
// A bare "admin" maps to the help action.
func ParseAdminCommand(text string) *AdminCommand {
	m := adminRx.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return nil
	}
	rest := strings.TrimSpace(m[1])
	if rest == "" {
		return &AdminCommand{Action: "help"}
	}
	parts := strings.Fields(rest)
	return &AdminCommand{
		Action:  parts[0],
		Args:    parts[1:],
		RawArgs: strings.TrimSpace(strings.TrimPrefix(rest, parts[0])),
	}
}
