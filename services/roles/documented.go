package roles

import (
	"fmt"
	"os"
	"sort"

	"clubops-backend/lib/discord"
	"clubops-backend/services/club"

	"gopkg.in/yaml.v3"
)

// RoleDoc is one entry of the documented-roles YAML file. The file is
// the editorial side of the register: which roles are explained to
// members and how.
type RoleDoc struct {
	ID          string `yaml:"id"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
}

func LoadRoleDocs(path string) ([]RoleDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []RoleDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}
	return docs, nil
}

// MergeRoleDocs joins the YAML register with the live role list.
// Position is the 1-based rank within the hierarchy (highest role
// first), counted over documented roles only. A documented role
// missing from the platform is an error; the reverse is fine, roles
// not in the YAML are simply unmanaged.
func MergeRoleDocs(docs []RoleDoc, guildRoles []discord.Role) ([]club.DocumentedRole, error) {
	byID := make(map[string]discord.Role, len(guildRoles))
	for _, role := range guildRoles {
		byID[role.ID] = role
	}

	merged := make([]club.DocumentedRole, 0, len(docs))
	for _, doc := range docs {
		role, ok := byID[doc.ID]
		if !ok {
			return nil, fmt.Errorf("documented role %q (%s) not found on the platform", doc.Slug, doc.ID)
		}
		merged = append(merged, club.DocumentedRole{
			ID:          role.ID,
			Name:        role.Name,
			Mention:     role.Mention(),
			Slug:        doc.Slug,
			Description: doc.Description,
			Emoji:       role.UnicodeEmoji,
		})
	}

	position := make(map[string]int, len(guildRoles))
	for _, role := range guildRoles {
		position[role.ID] = role.Position
	}
	sort.SliceStable(merged, func(a, b int) bool {
		return position[merged[a].ID] > position[merged[b].ID]
	})
	for i := range merged {
		merged[i].Position = i + 1
	}
	return merged, nil
}
