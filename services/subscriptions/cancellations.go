package subscriptions

import (
	"time"

	"clubops-backend/lib/textutil"
	"clubops-backend/services/club"

	"github.com/antzucaro/matchr"
)

// memberMatchThreshold is how similar two display names must be for a
// cancellation row to be attributed to a club member. Jaro-Winkler,
// so 1 is identical.
const memberMatchThreshold = 0.85

type Cancellation struct {
	Name     string
	Email    string
	Reason   string
	Feedback string
	Date     time.Time
	// MemberID is filled in by MatchMembers when a club member with
	// a close enough display name exists.
	MemberID string
}

// ParseCancellations reads the billing platform's cancellations CSV
// export (header row expected, dates as yyyy-mm-dd).
func ParseCancellations(rows []map[string]string) []Cancellation {
	var cancellations []Cancellation
	for _, row := range rows {
		cancellation := Cancellation{
			Name:     row["name"],
			Email:    row["email"],
			Reason:   row["reason"],
			Feedback: row["feedback"],
		}
		if raw := row["date"]; raw != "" {
			if date, err := time.Parse("2006-01-02", raw); err == nil {
				cancellation.Date = date
			}
		}
		cancellations = append(cancellations, cancellation)
	}
	return cancellations
}

// ParseReferrers reads the referrers CSV export into email → referring
// URL. Empty referrers are dropped.
func ParseReferrers(rows []map[string]string) map[string]string {
	referrers := map[string]string{}
	for _, row := range rows {
		if row["email"] != "" && row["referrer"] != "" {
			referrers[row["email"]] = row["referrer"]
		}
	}
	return referrers
}

// ParseOrigins reads the signup-origins CSV export into email → origin
// page URL.
func ParseOrigins(rows []map[string]string) map[string]string {
	origins := map[string]string{}
	for _, row := range rows {
		if row["email"] != "" && row["origin"] != "" {
			origins[row["email"]] = row["origin"]
		}
	}
	return origins
}

// MatchMembers attributes cancellations to club members by fuzzy
// display-name similarity. The billing platform and the chat platform
// know members under slightly different names, exact matching would
// miss most of them.
func MatchMembers(cancellations []Cancellation, members []club.Member) []Cancellation {
	matched := make([]Cancellation, len(cancellations))
	for i, cancellation := range cancellations {
		matched[i] = cancellation
		name := textutil.NormalizeName(cancellation.Name)
		if name == "" {
			continue
		}

		best := ""
		bestSimilarity := 0.0
		for _, member := range members {
			similarity := matchr.JaroWinkler(name, textutil.NormalizeName(member.DisplayName), false)
			if similarity > bestSimilarity {
				bestSimilarity = similarity
				best = member.ID
			}
		}
		if bestSimilarity >= memberMatchThreshold {
			matched[i].MemberID = best
		}
	}
	return matched
}
