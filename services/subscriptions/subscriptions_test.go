package subscriptions

import (
	"regexp"
	"testing"
	"time"

	"clubops-backend/services/club"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseCoupon(t *testing.T) {
	testCases := []struct {
		raw      string
		expected Coupon
	}{
		{"", Coupon{}},
		{"GARGAMEL", Coupon{Name: "GARGAMEL"}},
		{"GARGAMEL123456", Coupon{Name: "GARGAMEL", Suffix: "123456"}},
		{"gargamel123456", Coupon{Name: "GARGAMEL", Suffix: "123456"}},
		{"  THANKYOU  ", Coupon{Name: "THANKYOU"}},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, ParseCoupon(tc.raw), tc.raw)
	}
}

func TestGenerateCoupon(t *testing.T) {
	coupon, err := GenerateCoupon("Acme Corp s.r.o.")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^ACMECORPSRO\d{6}$`), coupon)

	parsed := ParseCoupon(coupon)
	require.Equal(t, "ACMECORPSRO", parsed.Name)
	require.Len(t, parsed.Suffix, 6)
}

func TestClassifySubscription(t *testing.T) {
	partners := map[string]bool{"ACME": true}
	students := map[string]bool{"STUDENTACME": true}

	testCases := []struct {
		coupon   string
		expected string
	}{
		{"", TypeIndividual},
		{"THANKYOU123456", TypeFree},
		{"FINAID777777", TypeFinAid},
		{"ACME123456", TypePartner},
		{"STUDENTACME123456", TypeStudent},
		{"UNKNOWN123456", TypeIndividual},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, ClassifySubscription(tc.coupon, partners, students), tc.coupon)
	}
}

func TestActivitiesFromSubscription(t *testing.T) {
	first := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

	sub := Subscription{
		AccountID:    "acc1",
		Coupon:       "ACME123456",
		TrialStartAt: first.Add(-time.Hour * 24 * 14),
		TrialEndAt:   first,
		Orders: []Order{
			{CreatedAt: second, Coupon: "OLD111111"},
			{CreatedAt: first},
		},
	}

	expected := []club.Activity{
		{AccountID: "acc1", Type: ActivityOrder, HappenedAt: first},
		{AccountID: "acc1", Type: ActivityOrder, HappenedAt: second, Coupon: "ACME123456"},
		{AccountID: "acc1", Type: ActivityTrialStart, HappenedAt: first.Add(-time.Hour * 24 * 14)},
		{AccountID: "acc1", Type: ActivityTrialEnd, HappenedAt: first},
	}
	if diff := cmp.Diff(expected, ActivitiesFromSubscription(sub)); diff != "" {
		t.Fatal(diff)
	}
}

func TestActivitiesFromSubscriptionNoTrial(t *testing.T) {
	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	activities := ActivitiesFromSubscription(Subscription{
		AccountID: "acc1",
		Orders:    []Order{{CreatedAt: created, Coupon: "OLD111111"}},
	})
	require.Len(t, activities, 1)
	// no subscription coupon, the order keeps its own
	require.Equal(t, "OLD111111", activities[0].Coupon)
}

func TestMapActivityType(t *testing.T) {
	mapped, ok := MapActivityType("new_order")
	require.True(t, ok)
	require.Equal(t, ActivityOrder, mapped)

	mapped, ok = MapActivityType("subscription_deactivated")
	require.True(t, ok)
	require.Equal(t, ActivityDeactivation, mapped)

	_, ok = MapActivityType("member_signup")
	require.False(t, ok)
}

func TestNameRegister(t *testing.T) {
	register := NewNameRegister([]string{"Žofie", "Marie", "Dana"})

	require.True(t, register.IsFeminine("Žofie Nováková"))
	require.True(t, register.IsFeminine("zofie"))
	require.True(t, register.IsFeminine("  Dana  "))
	require.False(t, register.IsFeminine("Honza Novák"))
	require.False(t, register.IsFeminine(""))
}

func TestMatchMembers(t *testing.T) {
	members := []club.Member{
		{ID: "1", DisplayName: "Honza Javorek"},
		{ID: "2", DisplayName: "Žofie Nováková"},
	}
	cancellations := []Cancellation{
		{Name: "Honza Javorek ml."},
		{Name: "Completely Different Person"},
		{Name: ""},
	}

	matched := MatchMembers(cancellations, members)
	require.Equal(t, "1", matched[0].MemberID)
	require.Equal(t, "", matched[1].MemberID)
	require.Equal(t, "", matched[2].MemberID)
}

func TestParseCancellations(t *testing.T) {
	rows := []map[string]string{
		{"name": "Honza", "email": "honza@example.com", "reason": "other", "feedback": "time", "date": "2023-05-01"},
		{"name": "Dana", "email": "dana@example.com", "reason": "price", "feedback": "", "date": ""},
	}
	cancellations := ParseCancellations(rows)
	require.Len(t, cancellations, 2)
	require.Equal(t, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), cancellations[0].Date)
	require.True(t, cancellations[1].Date.IsZero())
}

func TestRenderCancellationsReport(t *testing.T) {
	report := RenderCancellationsReport([]Cancellation{
		{Name: "Honza", Reason: "other", Date: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.Contains(t, report, "Honza")
	require.Contains(t, report, "2023-05-01")
}
