package jobs

import (
	"context"
	"strings"

	"clubops-backend/lib/textutil"
)

// Canonical employment type tags, in the order of how much of a real
// job they are.
const (
	FullTime         = "FULL_TIME"
	PartTime         = "PART_TIME"
	Contract         = "CONTRACT"
	PaidInternship   = "PAID_INTERNSHIP"
	UnpaidInternship = "UNPAID_INTERNSHIP"
	Internship       = "INTERNSHIP"
	Volunteering     = "VOLUNTEERING"
)

var employmentTypesPriority = []string{
	FullTime,
	PartTime,
	Contract,
	PaidInternship,
	UnpaidInternship,
	Internship,
	Volunteering,
}

// employmentTypesMapping folds the boards' free-text variants onto the
// canonical tags. Keys are normalized (lowercase, accents folded,
// non-letters collapsed to spaces).
var employmentTypesMapping = map[string]string{
	"full time":         FullTime,
	"fulltime":          FullTime,
	"plny uvazek":       FullTime,
	"hpp":               FullTime,
	"part time":         PartTime,
	"parttime":          PartTime,
	"zkraceny uvazek":   PartTime,
	"contract":          Contract,
	"kontrakt":          Contract,
	"zivnost":           Contract,
	"ico":               Contract,
	"external collaboration": Contract,
	"paid internship":   PaidInternship,
	"placena staz":      PaidInternship,
	"unpaid internship": UnpaidInternship,
	"neplacena staz":    UnpaidInternship,
	"internship":        Internship,
	"staz":              Internship,
	"volunteering":      Volunteering,
	"dobrovolnictvi":    Volunteering,
}

func normalizeEmploymentType(raw string) string {
	folded := textutil.RemoveAccents(strings.ToLower(raw))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	return strings.Join(fields, " ")
}

// NormalizeEmploymentTypes maps free-text values onto canonical tags,
// priority ordered. The first tag is the posting's main regime, every
// further one is kept with an ALSO_ prefix so readers can tell "full
// time, also doable part time" from a genuine part time job.
func NormalizeEmploymentTypes(raw []string) []string {
	present := map[string]bool{}
	for _, value := range raw {
		if mapped, ok := employmentTypesMapping[normalizeEmploymentType(value)]; ok {
			present[mapped] = true
		}
	}

	var types []string
	for _, canonical := range employmentTypesPriority {
		if !present[canonical] {
			continue
		}
		if len(types) == 0 {
			types = append(types, canonical)
		} else {
			types = append(types, "ALSO_"+canonical)
		}
	}
	return types
}

type EmploymentTypesStage struct{}

func (EmploymentTypesStage) Name() string { return "employment_types" }

func (EmploymentTypesStage) Process(ctx context.Context, posting Posting) (Posting, error) {
	posting.EmploymentTypes = NormalizeEmploymentTypes(posting.EmploymentTypes)
	return posting, nil
}
