package jobs

import (
	"context"
	"regexp"
)

// BlocklistRule drops postings whose field matches the pattern. The
// boards tag anything vaguely technical as IT, so obvious non-software
// trades get weeded out here.
type BlocklistRule struct {
	Field   string
	Pattern *regexp.Regexp
}

var DefaultBlocklist = []BlocklistRule{
	{"title", regexp.MustCompile(`(?i)\b(plc|cnc) programátor`)},
	{"title", regexp.MustCompile(`(?i)elektro`)},
	{"title", regexp.MustCompile(`(?i)\bkonstruktér`)},
	{"title", regexp.MustCompile(`(?i)\bcae inženýr`)},
	{"title", regexp.MustCompile(`(?i)\bseřizovač`)},
}

type BlocklistStage struct {
	Rules []BlocklistRule
}

func (s BlocklistStage) Name() string { return "blocklist" }

func (s BlocklistStage) Process(ctx context.Context, posting Posting) (Posting, error) {
	for _, rule := range s.Rules {
		value := ""
		switch rule.Field {
		case "title":
			value = posting.Title
		case "company_name":
			value = posting.CompanyName
		case "description_text":
			value = posting.DescriptionText
		}
		if rule.Pattern.MatchString(value) {
			return Posting{}, Drop("blocklist rule applied: %s value %q matches %q",
				rule.Field, value, rule.Pattern.String())
		}
	}
	return posting, nil
}
