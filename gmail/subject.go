package gmail

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Telpress subjects spell the date out in Italian, e.g.
// "Rassegna STAMPA del 26 agosto 2025".
var monthsIT = [12]string{
	"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno",
	"luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre",
}

var subjectDateRe = regexp.MustCompile(`(?i)del\s+(\d{1,2})\s+([a-zàèéìòù]+)\s+(\d{4})`)

// SubjectDatePhrase renders the date phrase used in the subject line.
func SubjectDatePhrase(d time.Time) string {
	return fmt.Sprintf("del %d %s %d", d.Day(), monthsIT[d.Month()-1], d.Year())
}

// FileNameFromSubject derives the destination filename from the Italian
// date phrase in a subject line, e.g. "del 26 agosto 2025" becomes
// "2025.08.26.pdf". Returns false when no phrase is present.
func FileNameFromSubject(subject string) (string, bool) {
	m := subjectDateRe.FindStringSubmatch(subject)
	if m == nil {
		return "", false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	month := 0
	for i, name := range monthsIT {
		if strings.EqualFold(m[2], name) {
			month = i + 1
			break
		}
	}
	if month == 0 {
		return "", false
	}
	return fmt.Sprintf("%04d.%02d.%02d.pdf", year, month, day), true
}
