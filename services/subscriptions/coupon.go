// Package subscriptions reconciles the billing platform's view of the
// community with the club mirror: coupons, subscription activities,
// cancellation reports.
package subscriptions

import (
	"fmt"
	"regexp"
	"strings"

	"clubops-backend/lib/textutil"

	"github.com/mazen160/go-random"
)

// Coupon is a parsed coupon code. The name identifies the partner or
// campaign, the numeric suffix makes individual codes unguessable.
type Coupon struct {
	Name   string
	Suffix string
}

var couponRegexp = regexp.MustCompile(`^([A-Z]+)([0-9]+)?$`)

// ParseCoupon splits a code like NAME123456 into its name and suffix.
// Unrecognized codes keep the whole value as the name.
func ParseCoupon(raw string) Coupon {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return Coupon{}
	}
	match := couponRegexp.FindStringSubmatch(raw)
	if match == nil {
		return Coupon{Name: raw}
	}
	return Coupon{Name: match[1], Suffix: match[2]}
}

// CouponName normalizes a partner or campaign name into the letters
// its coupon codes carry: accents folded, uppercased, letters only.
func CouponName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(textutil.RemoveAccents(name)))
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r
		}
		return -1
	}, name)
}

// GenerateCoupon mints a fresh code for the given name, with a random
// six digit suffix.
func GenerateCoupon(name string) (string, error) {
	name = CouponName(name)
	if name == "" {
		return "", fmt.Errorf("coupon name is empty after normalization")
	}
	suffix, err := random.IntRange(100000, 1000000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", name, suffix), nil
}

// Subscription tiers derived from the coupon on the account.
const (
	TypeIndividual = "individual"
	TypeFree       = "free"
	TypeFinAid     = "finaid"
	TypePartner    = "partner"
	TypeStudent    = "student"
)

var freeCoupons = map[string]string{
	"THANKYOU":        TypeFree,
	"THANKYOUFOREVER": TypeFree,
	"FOUNDERS":        TypeFree,
	"FINAID":          TypeFinAid,
}

// ClassifySubscription maps a coupon to a subscription tier. No coupon
// means a regular paying member.
func ClassifySubscription(coupon string, partnerCoupons, studentCoupons map[string]bool) string {
	name := ParseCoupon(coupon).Name
	if name == "" {
		return TypeIndividual
	}
	if tier, ok := freeCoupons[name]; ok {
		return tier
	}
	if studentCoupons[name] {
		return TypeStudent
	}
	if partnerCoupons[name] {
		return TypePartner
	}
	return TypeIndividual
}
