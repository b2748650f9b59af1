package roles

import (
	"strings"

	"clubops-backend/lib/discord"
	"clubops-backend/services/club"
	"clubops-backend/services/subscriptions"
)

// Prefixes of the roles named after partnering companies and their
// sponsored students.
const (
	PartnerRolePrefix = "Firma: "
	StudentRolePrefix = "Student: "
)

// PrefixedRolePlan says which prefixed roles to create and which
// existing ones to delete so the live list matches the wanted names.
type PrefixedRolePlan struct {
	Create []string
	Delete []discord.Role
}

func (p PrefixedRolePlan) Empty() bool {
	return len(p.Create) == 0 && len(p.Delete) == 0
}

// PlanPrefixedRoles reconciles the roles carrying the given prefix.
// Only prefixed roles are considered; everything else is out of
// scope here.
func PlanPrefixedRoles(prefix string, wantedNames []string, existing []discord.Role) PrefixedRolePlan {
	wanted := make(map[string]bool, len(wantedNames))
	for _, name := range wantedNames {
		wanted[prefix+name] = true
	}

	var plan PrefixedRolePlan
	have := map[string]bool{}
	for _, role := range existing {
		if !strings.HasPrefix(role.Name, prefix) {
			continue
		}
		have[role.Name] = true
		if !wanted[role.Name] {
			plan.Delete = append(plan.Delete, role)
		}
	}
	for _, name := range wantedNames {
		if !have[prefix+name] {
			plan.Create = append(plan.Create, prefix+name)
		}
	}
	return plan
}

// PrefixedAssignment is the wanted membership of one prefixed role.
// RoleID stays empty when the role doesn't exist yet; it is resolved
// after the role is created.
type PrefixedAssignment struct {
	RoleName  string
	RoleID    string
	MemberIDs map[string]bool
}

// PlanPartnerAssignments maps each partner's coupon holders to the
// partner's own prefixed role, so a member with an ACMECORP coupon
// ends up carrying "Firma: Acme Corp" and not just the generic
// partner role.
func PlanPartnerAssignments(prefix string, names []string, members []club.Member, existing []discord.Role) []PrefixedAssignment {
	roleIDs := make(map[string]string, len(existing))
	for _, role := range existing {
		roleIDs[role.Name] = role.ID
	}

	var assignments []PrefixedAssignment
	for _, name := range names {
		couponName := subscriptions.CouponName(name)
		memberIDs := map[string]bool{}
		for _, member := range members {
			if member.Coupon == "" {
				continue
			}
			if subscriptions.ParseCoupon(member.Coupon).Name == couponName {
				memberIDs[member.ID] = true
			}
		}
		assignments = append(assignments, PrefixedAssignment{
			RoleName:  prefix + name,
			RoleID:    roleIDs[prefix+name],
			MemberIDs: memberIDs,
		})
	}
	return assignments
}
