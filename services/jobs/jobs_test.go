package jobs

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"clubops-backend/lib/geo"
	"clubops-backend/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	cleanup := telemetry.SetupForTesting("test:jobs")
	goleak.VerifyTestMain(m, goleak.Cleanup(func(exitCode int) {
		cleanup()
		os.Exit(exitCode)
	}))
}

func TestBlocklistStage(t *testing.T) {
	stage := BlocklistStage{Rules: DefaultBlocklist}

	testCases := []struct {
		title   string
		dropped bool
	}{
		{"Junior Go Developer", false},
		{"PLC programátor", true},
		{"CNC Programátor", true},
		{"Elektroinženýr", true},
		{"Konstruktér strojů", true},
		{"Seřizovač CNC strojů", true},
		{"Frontend Ninja", false},
	}
	for _, tc := range testCases {
		_, err := stage.Process(context.Background(), Posting{Title: tc.title})
		var dropErr DropError
		require.Equal(t, tc.dropped, errors.As(err, &dropErr), tc.title)
	}
}

type fakeGeocoder struct {
	addresses map[string]geo.Address
	err       error
}

func (f fakeGeocoder) Locate(ctx context.Context, locationRaw string) (geo.Address, bool, error) {
	if f.err != nil {
		return geo.Address{}, false, f.err
	}
	address, ok := f.addresses[locationRaw]
	return address, ok, nil
}

func TestLocationsStageFastPath(t *testing.T) {
	// big cities resolve without touching the geocoder at all
	stage := LocationsStage{Geocoder: fakeGeocoder{err: errors.New("no geocoder")}}

	posting, err := stage.Process(context.Background(), Posting{
		LocationsRaw: []string{"Praha, Karlín", "Offices in Prague or Brno", "Ostrava"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Ostrava, Ostrava", "Praha, Praha"}, posting.Locations)
}

func TestLocationsStageGeocoding(t *testing.T) {
	stage := LocationsStage{Geocoder: fakeGeocoder{addresses: map[string]geo.Address{
		"Děčín": {Place: "Děčín", Region: "Ústecký kraj", Country: "Česko"},
		"München": {Place: "München", Region: "Bayern", Country: "Deutschland"},
	}}}

	posting, err := stage.Process(context.Background(), Posting{
		LocationsRaw: []string{"Děčín", "München", "Atlantis"},
	})
	require.NoError(t, err)
	// the unknown location is dropped, the posting survives
	require.Equal(t, []string{"Děčín, Ústí nad Labem", "München, Německo"}, posting.Locations)
}

func TestLocationsStageGeocoderFailure(t *testing.T) {
	stage := LocationsStage{Geocoder: fakeGeocoder{err: errors.New("boom")}}

	posting, err := stage.Process(context.Background(), Posting{
		Title:        "Junior Dev",
		LocationsRaw: []string{"Wherever"},
	})
	require.NoError(t, err)
	require.Empty(t, posting.Locations)
}

func TestRegion(t *testing.T) {
	testCases := []struct {
		address  geo.Address
		expected string
	}{
		{geo.Address{Place: "Praha", Region: "Hlavní město Praha", Country: "Česko"}, "Praha"},
		{geo.Address{Place: "Kladno", Region: "Středočeský kraj", Country: "Česko"}, "Praha"},
		{geo.Address{Place: "Havířov", Region: "Moravskoslezský kraj", Country: "Česko"}, "Ostrava"},
		{geo.Address{Place: "Berlin", Region: "Berlin", Country: "Deutschland"}, "Německo"},
		{geo.Address{Place: "Paris", Region: "Île-de-France", Country: "France"}, "France"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, Region(tc.address), tc.address.Place)
	}
}

func TestNormalizeEmploymentTypes(t *testing.T) {
	testCases := []struct {
		raw      []string
		expected []string
	}{
		{nil, nil},
		{[]string{"full time"}, []string{FullTime}},
		{[]string{"plný úvazek"}, []string{FullTime}},
		{[]string{"part time", "full time"}, []string{FullTime, "ALSO_" + PartTime}},
		{[]string{"full time", "part time", "contract"}, []string{FullTime, "ALSO_" + PartTime, "ALSO_" + Contract}},
		{[]string{"dobrovolnictví"}, []string{Volunteering}},
		{[]string{"paid internship"}, []string{PaidInternship}},
		{[]string{"nonsense"}, nil},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, NormalizeEmploymentTypes(tc.raw), tc.raw)
	}
}

func TestCoerceTimestamp(t *testing.T) {
	testCases := []struct {
		value    string
		expected time.Time
	}{
		{"", time.Time{}},
		{"7/6/2019 20:24:03", time.Date(2019, 7, 6, 20, 24, 3, 0, time.UTC)},
		{"8/30/2019 20:24:03", time.Date(2019, 8, 30, 20, 24, 3, 0, time.UTC)},
		{"11/11/2019 20:24:03", time.Date(2019, 11, 11, 20, 24, 3, 0, time.UTC)},
	}
	for _, tc := range testCases {
		parsed, err := CoerceTimestamp(tc.value)
		require.NoError(t, err)
		require.Equal(t, tc.expected, parsed, tc.value)
	}
}

func TestCoerceBooleanWords(t *testing.T) {
	testCases := []struct {
		value  string
		result bool
		ok     bool
	}{
		{"", false, false},
		{"foo", false, false},
		{"1", false, false},
		{"True", false, false},
		{"true", false, false},
		{"yes", true, true},
		{"no", false, true},
	}
	for _, tc := range testCases {
		result, ok := CoerceBooleanWords(tc.value)
		require.Equal(t, tc.ok, ok, tc.value)
		require.Equal(t, tc.result, result, tc.value)
	}
}

func TestCoerceBoolean(t *testing.T) {
	require.False(t, CoerceBoolean(""))
	require.True(t, CoerceBoolean("foo"))
	require.True(t, CoerceBoolean("1"))
	require.True(t, CoerceBoolean("no"))
}

func TestCreateID(t *testing.T) {
	timestamp := time.Date(2019, 7, 6, 20, 24, 3, 0, time.UTC)

	// sha224 of "2019-07-06T20:24:03 www.example.com"
	require.Equal(t, "05f63361158f4546e3c84a60ba559f9d4fe9e32231f8c76dacaf01af",
		CreateID(timestamp, "https://www.example.com/foo/bar.html"))

	// links with no parseable host hash the timestamp alone,
	// sha224 of "2019-07-06T20:24:03 "
	require.Equal(t, "0eaf3178393abc568252edc83200e344ee6473dd3d3e65efe1f0a9c6",
		CreateID(timestamp, "www.example.com/kariera"))
	require.Equal(t, "0eaf3178393abc568252edc83200e344ee6473dd3d3e65efe1f0a9c6",
		CreateID(timestamp, "htt ps://broken"))
}

func TestCoerceRecord(t *testing.T) {
	submission, err := CoerceRecord(map[string]string{
		"Timestamp":            "7/6/2019 20:24:03",
		"Email Address":        "jobs@example.com",
		"Company name":         " Honza Ltd. ",
		"Company website link": "https://www.example.com",
		"Job type":             "paid internship",
		"Job title":            "Frontend Ninja",
		"Job description":      "",
		"Job location":         "Prague",
		"Approved":             "",
		"Sent":                 "11/11/2019",
	})
	require.NoError(t, err)

	expected := IntakeSubmission{
		ID:          CreateID(time.Date(2019, 7, 6, 20, 24, 3, 0, time.UTC), "https://www.example.com"),
		Timestamp:   time.Date(2019, 7, 6, 20, 24, 3, 0, time.UTC),
		Email:       "jobs@example.com",
		CompanyName: "Honza Ltd.",
		CompanyLink: "https://www.example.com",
		JobType:     "paid internship",
		Title:       "Frontend Ninja",
		Location:    "Prague",
		IsApproved:  false,
		IsSent:      true,
	}
	if diff := cmp.Diff(expected, submission); diff != "" {
		t.Fatal(diff)
	}
}

type renameStage struct{ title string }

func (renameStage) Name() string { return "rename" }
func (s renameStage) Process(ctx context.Context, p Posting) (Posting, error) {
	p.Title = s.title
	return p, nil
}

type failStage struct{ err error }

func (failStage) Name() string { return "fail" }
func (s failStage) Process(ctx context.Context, p Posting) (Posting, error) {
	return Posting{}, s.err
}

func TestRunDropPolicy(t *testing.T) {
	postings := []Posting{
		{Title: "Junior Go Developer"},
		{Title: "PLC programátor"},
	}
	stages := []Stage{
		BlocklistStage{Rules: DefaultBlocklist},
		renameStage{title: "processed"},
	}

	result, skipped := Run(context.Background(), postings, stages)
	require.Len(t, result, 1)
	require.Equal(t, "processed", result[0].Title)
	require.Empty(t, skipped)
}

func TestRunSkipPolicy(t *testing.T) {
	// a malfunctioning stage skips the posting but the batch goes on,
	// and the skipped postings come back for a retry
	postings := []Posting{{Title: "a"}, {Title: "b"}}
	stages := []Stage{failStage{err: errors.New("boom")}}

	result, skipped := Run(context.Background(), postings, stages)
	require.Empty(t, result)
	require.Equal(t, postings, skipped)
}

func TestRunKeepsOrder(t *testing.T) {
	postings := []Posting{{Title: "a"}, {Title: "b"}, {Title: "c"}}
	result, skipped := Run(context.Background(), postings, nil)
	require.Equal(t, postings, result)
	require.Empty(t, skipped)
}
