package siakad

import (
	"regexp"
	"strings"

	"warkrs/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Outcome is what a portal response actually meant for one
// registration attempt.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeEnrolled
	OutcomeAlreadyEnrolled
	OutcomeQuotaFull
	OutcomeRejected
	OutcomeSessionExpired
	OutcomeNetworkFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEnrolled:
		return "enrolled"
	case OutcomeAlreadyEnrolled:
		return "already_enrolled"
	case OutcomeQuotaFull:
		return "quota_full"
	case OutcomeRejected:
		return "rejected"
	case OutcomeSessionExpired:
		return "session_expired"
	case OutcomeNetworkFailure:
		return "network_failure"
	}
	return "unknown"
}

// Retryable reports whether the course should stay in the pending set
// and be attempted again next cycle.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeEnrolled, OutcomeAlreadyEnrolled, OutcomeSessionExpired:
		return false
	}
	return true
}

// ParseOutcome maps the string form back to an Outcome, used when rule
// tables come from configuration.
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "enrolled":
		return OutcomeEnrolled, true
	case "already_enrolled":
		return OutcomeAlreadyEnrolled, true
	case "quota_full":
		return OutcomeQuotaFull, true
	case "rejected":
		return OutcomeRejected, true
	case "session_expired":
		return OutcomeSessionExpired, true
	case "network_failure":
		return OutcomeNetworkFailure, true
	case "unknown":
		return OutcomeUnknown, true
	}
	return OutcomeUnknown, false
}

// Rule matches a response body against a set of markers. Markers are
// case-insensitive substrings, any one of them matching fires the rule.
type Rule struct {
	Outcome Outcome
	Markers []string
}

// DefaultRules is evaluated top to bottom, first match wins. Order is
// load-bearing: an expired session serves the login page, which can echo
// text that looks like a quota or success message, so session markers
// must come first. The boundary between what counts as a retryable
// rejection versus a permanent one lives here as data, the portal does
// not document it.
var DefaultRules = []Rule{
	{OutcomeSessionExpired, []string{
		"silakan login",
		"sesi anda telah berakhir",
		"halaman login",
		`name="password"`,
	}},
	{OutcomeEnrolled, []string{
		"berhasil ditambahkan",
		"berhasil disimpan",
	}},
	{OutcomeAlreadyEnrolled, []string{
		"sudah diambil",
		"sudah terdaftar",
		"sudah ada di krs",
	}},
	{OutcomeQuotaFull, []string{
		"kuota penuh",
		"kelas penuh",
		"kuota kelas sudah penuh",
	}},
	{OutcomeRejected, []string{
		"jadwal bentrok",
		"bentrok dengan",
		"prasyarat",
	}},
}

// Classify interprets a raw portal response with DefaultRules.
func Classify(body string, status int) Outcome {
	return ClassifyWith(DefaultRules, body, status)
}

// ClassifyWith is a pure function of its inputs: no rule may perform IO.
// Malformed or empty bodies never fail, they degrade to OutcomeUnknown
// (or OutcomeNetworkFailure on a 5xx status).
func ClassifyWith(rules []Rule, body string, status int) Outcome {
	lower := strings.ToLower(body)
	for _, rule := range rules {
		for _, marker := range rule.Markers {
			if strings.Contains(lower, strings.ToLower(marker)) {
				return rule.Outcome
			}
		}
	}
	if status >= 500 {
		return OutcomeNetworkFailure
	}
	return OutcomeUnknown
}

var alertRegex = regexp.MustCompile(`alert\(\s*["']([^"']*)["']\s*\)`)

// ExtractAlert pulls the message out of a javascript `alert("...")` call
// embedded in the response, the portal reports registration results this
// way. Returns "" when no alert is present or the body cannot be parsed.
func ExtractAlert(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		// html.Parse almost never fails, but the classifier contract is
		// to degrade, not to error
		groups := alertRegex.FindStringSubmatch(body)
		if len(groups) < 2 {
			return ""
		}
		return groups[1]
	}

	for _, script := range doc.Find("script").Nodes {
		text := htmlutil.GetText(script)
		groups := alertRegex.FindStringSubmatch(text)
		if len(groups) < 2 {
			continue
		}
		return groups[1]
	}
	return ""
}
