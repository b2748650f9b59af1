package roles

import (
	"time"

	"clubops-backend/services/club"
	"clubops-backend/services/subscriptions"
)

// Slugs of the managed roles. They key both the documented-roles
// register and the rule set below; anything else on the platform is
// left alone.
const (
	SlugMostDiscussing    = "most_discussing"
	SlugMostHelpful       = "most_helpful"
	SlugHasIntroAndAvatar = "has_intro_and_avatar"
	SlugNew               = "new"
	SlugYearOld           = "year_old"
	SlugFounder           = "founder"
	SlugSpeaker           = "speaker"
	SlugMentor            = "mentor"
	SlugPartner           = "partner"
)

// ManagedSlugs lists every rule-driven role.
var ManagedSlugs = []string{
	SlugMostDiscussing,
	SlugMostHelpful,
	SlugHasIntroAndAvatar,
	SlugNew,
	SlugYearOld,
	SlugFounder,
	SlugSpeaker,
	SlugMentor,
	SlugPartner,
}

const (
	newMemberWindow = time.Hour * 24 * 15
	yearOldAge      = time.Hour * 24 * 366
)

// RuleInputs carries everything the rules need beyond the member list
// itself.
type RuleInputs struct {
	Members  []club.Member
	Today    time.Time
	TopLimit int

	// PartnerCoupons holds coupon names (the letter prefix) whose
	// members get the partner role.
	PartnerCoupons map[string]bool
	SpeakerIDs     map[string]bool
	MentorIDs      map[string]bool
	// FoundersCutoff is the last day someone could join and still
	// count as a founding member.
	FoundersCutoff time.Time
}

// TargetSets computes, per managed role slug, the set of member ids
// that should hold the role.
func TargetSets(inputs RuleInputs) map[string]map[string]bool {
	memberID := func(m club.Member) string { return m.ID }

	mostDiscussing := TopMemberIDs(inputs.Members, memberID,
		func(m club.Member) int { return m.MessagesCount }, inputs.TopLimit)
	for id := range TopMemberIDs(inputs.Members, memberID,
		func(m club.Member) int { return m.RecentMessagesCount }, inputs.TopLimit) {
		mostDiscussing[id] = true
	}

	mostHelpful := TopMemberIDs(inputs.Members, memberID,
		func(m club.Member) int { return m.UpvotesCount }, inputs.TopLimit)
	for id := range TopMemberIDs(inputs.Members, memberID,
		func(m club.Member) int { return m.RecentUpvotesCount }, inputs.TopLimit) {
		mostHelpful[id] = true
	}

	targets := map[string]map[string]bool{
		SlugMostDiscussing:    mostDiscussing,
		SlugMostHelpful:       mostHelpful,
		SlugHasIntroAndAvatar: {},
		SlugNew:               {},
		SlugYearOld:           {},
		SlugFounder:           {},
		SlugSpeaker:           inputs.SpeakerIDs,
		SlugMentor:            inputs.MentorIDs,
		SlugPartner:           {},
	}
	if targets[SlugSpeaker] == nil {
		targets[SlugSpeaker] = map[string]bool{}
	}
	if targets[SlugMentor] == nil {
		targets[SlugMentor] = map[string]bool{}
	}

	for _, member := range inputs.Members {
		if member.HasAvatar && member.IntroMessageID != "" {
			targets[SlugHasIntroAndAvatar][member.ID] = true
		}
		if inputs.Today.Sub(member.FirstSeenOn) <= newMemberWindow {
			targets[SlugNew][member.ID] = true
		}
		if inputs.Today.Sub(member.JoinedAt) >= yearOldAge {
			targets[SlugYearOld][member.ID] = true
		}
		if !inputs.FoundersCutoff.IsZero() && !member.FirstSeenOn.After(inputs.FoundersCutoff) {
			targets[SlugFounder][member.ID] = true
		}
		coupon := subscriptions.ParseCoupon(member.Coupon)
		if coupon.Name != "" && inputs.PartnerCoupons[coupon.Name] {
			targets[SlugPartner][member.ID] = true
		}
	}
	return targets
}
