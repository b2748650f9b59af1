package roles

import (
	"context"
	"log/slog"

	"clubops-backend/lib/discord"
	"clubops-backend/lib/telemetry"
	"clubops-backend/lib/timezone"
	"clubops-backend/services/club"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var tracer = telemetry.Tracer("services/roles")

type Service struct {
	store   club.Store
	chat    *discord.Client
	guildID string
	options ServiceOptions
}

type ServiceOptions struct {
	// RoleDocsPath points at the documented-roles YAML file.
	RoleDocsPath string

	PartnerCoupons map[string]bool
	PartnerNames   []string
	StudentNames   []string
	SpeakerIDs     map[string]bool
	MentorIDs      map[string]bool
	FoundersCutoff string // yyyy-mm-dd, empty disables the founder rule
}

func NewService(store club.Store, chat *discord.Client, guildID string, options ServiceOptions) Service {
	return Service{
		store:   store,
		chat:    chat,
		guildID: guildID,
		options: options,
	}
}

// Plan is everything a sync run wants to do, computed before anything
// is touched. Dry runs render it; real runs apply it.
type Plan struct {
	Changes      []MemberChanges
	PartnerRoles PrefixedRolePlan
	StudentRoles PrefixedRolePlan
	// PartnerAssignments is the wanted membership of every partner
	// role, applied after the missing roles are created.
	PartnerAssignments []PrefixedAssignment
}

func (p Plan) Empty() bool {
	return len(p.Changes) == 0 && p.PartnerRoles.Empty() && p.StudentRoles.Empty() &&
		len(p.PartnerAssignments) == 0
}

// Plan computes the reconciliation plan: refresh the documented-role
// register, evaluate the rules and diff every member against the
// target sets.
func (s Service) Plan(ctx context.Context) (Plan, error) {
	ctx, span := tracer.Start(ctx, "Plan")
	defer span.End()

	guildRoles, err := s.chat.GuildRoles(ctx, s.guildID)
	if err != nil {
		return Plan{}, spanErr(span, err, "failed to list guild roles")
	}

	docs, err := LoadRoleDocs(s.options.RoleDocsPath)
	if err != nil {
		return Plan{}, spanErr(span, err, "failed to load role docs")
	}
	documented, err := MergeRoleDocs(docs, guildRoles)
	if err != nil {
		return Plan{}, spanErr(span, err, "failed to merge role docs")
	}
	if err := s.store.SaveDocumentedRoles(ctx, documented); err != nil {
		return Plan{}, spanErr(span, err, "failed to save documented roles")
	}

	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return Plan{}, spanErr(span, err, "failed to list members")
	}
	topLimit, err := s.store.TopMembersLimit(ctx)
	if err != nil {
		return Plan{}, spanErr(span, err, "failed to compute top members limit")
	}

	inputs := RuleInputs{
		Members:        members,
		Today:          timezone.Today(),
		TopLimit:       topLimit,
		PartnerCoupons: s.options.PartnerCoupons,
		SpeakerIDs:     s.options.SpeakerIDs,
		MentorIDs:      s.options.MentorIDs,
	}
	if s.options.FoundersCutoff != "" {
		cutoff, err := timezone.ParseDate(s.options.FoundersCutoff)
		if err != nil {
			return Plan{}, spanErr(span, err, "invalid founders cutoff")
		}
		inputs.FoundersCutoff = cutoff
	}
	targets := TargetSets(inputs)

	roleIDBySlug := make(map[string]string, len(documented))
	for _, role := range documented {
		roleIDBySlug[role.Slug] = role.ID
	}

	var changes []Change
	for _, slug := range ManagedSlugs {
		roleID, ok := roleIDBySlug[slug]
		if !ok {
			slog.WarnContext(ctx, "managed role is not documented, skipping", "slug", slug)
			continue
		}
		for _, member := range members {
			changes = append(changes,
				EvaluateChanges(member.ID, member.Roles(), targets[slug], roleID)...)
		}
	}

	plan := Plan{
		Changes:      GroupChanges(changes),
		PartnerRoles: PlanPrefixedRoles(PartnerRolePrefix, s.options.PartnerNames, guildRoles),
		StudentRoles: PlanPrefixedRoles(StudentRolePrefix, s.options.StudentNames, guildRoles),
		PartnerAssignments: PlanPartnerAssignments(
			PartnerRolePrefix, s.options.PartnerNames, members, guildRoles),
	}
	span.SetAttributes(
		attribute.Int("members_changed", len(plan.Changes)),
		attribute.Int("prefixed_create", len(plan.PartnerRoles.Create)+len(plan.StudentRoles.Create)),
		attribute.Int("prefixed_delete", len(plan.PartnerRoles.Delete)+len(plan.StudentRoles.Delete)),
	)
	return plan, nil
}

// Apply pushes the plan to the platform and mirrors the resulting
// role sets back to the store. Grants and revocations go through the
// per-role endpoints, batched per member and direction, so roles
// granted by hand between the mirror run and this one are never
// clobbered.
func (s Service) Apply(ctx context.Context, plan Plan) error {
	ctx, span := tracer.Start(ctx, "Apply")
	defer span.End()

	created := map[string]string{}
	for _, prefixed := range []PrefixedRolePlan{plan.PartnerRoles, plan.StudentRoles} {
		for _, name := range prefixed.Create {
			slog.InfoContext(ctx, "creating role", "name", name)
			role, err := s.chat.CreateRole(ctx, s.guildID, discord.CreateRoleParams{Name: name})
			if err != nil {
				return spanErr(span, err, "failed to create role")
			}
			created[name] = role.ID
		}
		for _, role := range prefixed.Delete {
			slog.InfoContext(ctx, "deleting role", "name", role.Name, "id", role.ID)
			if err := s.chat.DeleteRole(ctx, s.guildID, role.ID); err != nil {
				return spanErr(span, err, "failed to delete role")
			}
		}
	}

	for _, memberChanges := range plan.Changes {
		if err := s.applyMemberChanges(ctx, memberChanges); err != nil {
			return spanErr(span, err, "failed to update member roles")
		}
	}

	assignmentChanges, err := s.assignmentChanges(ctx, plan.PartnerAssignments, created)
	if err != nil {
		return spanErr(span, err, "failed to plan partner assignments")
	}
	for _, memberChanges := range assignmentChanges {
		if err := s.applyMemberChanges(ctx, memberChanges); err != nil {
			return spanErr(span, err, "failed to update partner roles")
		}
	}
	return nil
}

func (s Service) applyMemberChanges(ctx context.Context, memberChanges MemberChanges) error {
	member, err := s.store.GetMember(ctx, memberChanges.MemberID)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "updating member roles",
		"member", member.DisplayName,
		"add", len(memberChanges.Add),
		"remove", len(memberChanges.Remove))
	if err := s.chat.AddMemberRoles(ctx, s.guildID, member.ID, memberChanges.Add); err != nil {
		return err
	}
	if err := s.chat.RemoveMemberRoles(ctx, s.guildID, member.ID, memberChanges.Remove); err != nil {
		return err
	}

	updated := ApplyToRoles(member.Roles(), memberChanges)
	return s.store.UpdateMemberRoles(ctx, member.ID, updated)
}

// assignmentChanges diffs every member against the partner role
// memberships. Role ids missing from the plan are resolved from the
// roles created moments ago.
func (s Service) assignmentChanges(ctx context.Context, assignments []PrefixedAssignment, created map[string]string) ([]MemberChanges, error) {
	if len(assignments) == 0 {
		return nil, nil
	}
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, err
	}

	var changes []Change
	for _, assignment := range assignments {
		roleID := assignment.RoleID
		if roleID == "" {
			roleID = created[assignment.RoleName]
		}
		if roleID == "" {
			slog.WarnContext(ctx, "partner role is missing, skipping its assignments",
				"role", assignment.RoleName)
			continue
		}
		for _, member := range members {
			changes = append(changes,
				EvaluateChanges(member.ID, member.Roles(), assignment.MemberIDs, roleID)...)
		}
	}
	return GroupChanges(changes), nil
}

// Sync plans and applies in one go.
func (s Service) Sync(ctx context.Context) (Plan, error) {
	plan, err := s.Plan(ctx)
	if err != nil {
		return Plan{}, err
	}
	if plan.Empty() {
		slog.InfoContext(ctx, "roles already reconciled, nothing to do")
		return plan, nil
	}
	return plan, s.Apply(ctx, plan)
}

func spanErr(span oteltrace.Span, err error, message string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	return err
}
