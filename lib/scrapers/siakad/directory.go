package siakad

import (
	"regexp"
	"strings"

	"warkrs/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Course identifies one course/class pair on the portal. Name is a
// human-readable display name when known, it plays no part in identity.
type Course struct {
	Code    string `json:"code"`
	ClassId string `json:"class_id"`
	Name    string `json:"name,omitempty"`
}

// Directory is the parsed "pilih mata kuliah" page: the classes the
// student could select plus the courses already on their study plan.
type Directory struct {
	Available []Course
	Enrolled  []Course
}

func (d Directory) IsEnrolled(code string) bool {
	for _, c := range d.Enrolled {
		if c.Code == code {
			return true
		}
	}
	return false
}

// DisplayName looks up the selectable entry for a course code so
// notifications can carry something friendlier than the raw code.
func (d Directory) DisplayName(code string) string {
	for _, c := range d.Available {
		if c.Code == code && c.Name != "" {
			return c.Name
		}
	}
	return ""
}

// e.g. SD25-41301, IF24-12345
var courseCodeRegex = regexp.MustCompile(`^[A-Z]{2,4}\d{2}-\d{5}$`)
var courseCodeScanRegex = regexp.MustCompile(`[A-Z]{2,4}\d{2}-\d{5}`)

// ParseDirectory extracts both listings from one page. The layout varies
// when the student has no enrollments yet, so missing sections yield
// empty slices, never an error. Registration decisions do not depend on
// this being complete.
func ParseDirectory(body string) Directory {
	var dir Directory

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return dir
	}

	dir.Available = parseCourseOptions(doc)
	dir.Enrolled = parseEnrolledCourses(doc, body)
	return dir
}

// the selectable classes come as `<option value="{class id}">CODE - NAME</option>`
func parseCourseOptions(doc *goquery.Document) []Course {
	var courses []Course
	doc.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value := strings.TrimSpace(opt.AttrOr("value", ""))
		text := htmlutil.CleanText(opt.Text())
		if value == "" || text == "" {
			return
		}

		code, name, found := strings.Cut(text, " - ")
		if !found {
			return
		}
		code = strings.TrimSpace(code)
		if !courseCodeRegex.MatchString(code) {
			return
		}
		courses = append(courses, Course{
			Code:    code,
			ClassId: value,
			Name:    strings.TrimSpace(name),
		})
	})
	return courses
}

func parseEnrolledCourses(doc *goquery.Document, body string) []Course {
	table := doc.Find("table#tabelkrs").First()

	if table.Length() == 0 {
		// older renderings drop the id, look for a table that smells
		// like the study plan listing
		doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
			text := strings.ToLower(t.Text())
			for _, indicator := range []string{"kode", "mata kuliah", "sks", "kelas"} {
				if strings.Contains(text, indicator) {
					table = t
					return false
				}
			}
			return true
		})
	}

	if table.Length() == 0 {
		// last resort: scan the page text for anything shaped like a
		// course code
		var courses []Course
		seen := map[string]bool{}
		for _, code := range courseCodeScanRegex.FindAllString(doc.Text(), -1) {
			if seen[code] {
				continue
			}
			seen[code] = true
			courses = append(courses, Course{Code: code})
		}
		return courses
	}

	rows := table.Find("tbody tr")
	if rows.Length() == 0 {
		rows = table.Find("tr")
	}

	var courses []Course
	seen := map[string]bool{}
	rows.Each(func(_ int, row *goquery.Selection) {
		cols := row.Find("td")
		if cols.Length() < 2 {
			return
		}

		// the second column is usually "CODE - COURSE NAME"
		full := htmlutil.CleanText(cols.Eq(1).Text())
		code, name, found := strings.Cut(full, " - ")
		if !found {
			code = htmlutil.CleanText(cols.Eq(0).Text())
			name = ""
		}
		code = strings.TrimSpace(code)
		if !courseCodeRegex.MatchString(code) || seen[code] {
			return
		}
		seen[code] = true
		courses = append(courses, Course{
			Code: code,
			Name: strings.TrimSpace(name),
		})
	})
	return courses
}
