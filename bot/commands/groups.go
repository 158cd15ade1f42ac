package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/edubot/core/conversation"
)

// CreateGroup asks for a group name, creates the group and mints its first
// invite code.
func CreateGroup() *conversation.Definition {
	return &conversation.Definition{
		Token:       "/creategroup",
		Description: "Create a study group",
		Roles:       []string{RoleAdmin, RoleTeacher},
		States: []conversation.State{
			conversation.PromptState{
				Prompt:   "What should the group be called?",
				Key:      "group_name",
				Validate: conversation.NonBlank("Group name"),
			},
			conversation.ActionState{
				Name: "create_group",
				Run: func(ctx context.Context, t *conversation.Turn) error {
					name := mustString(t, "group_name")

					group, err := t.Services.Groups.Create(ctx, name)
					if errors.Is(err, conversation.ErrConflict) {
						return conversation.Collab("group.create",
							fmt.Sprintf("A group called %q already exists.", name), err)
					}
					if err != nil {
						return fmt.Errorf("create group: %w", err)
					}

					code, err := t.Services.Invites.NewCode(ctx, group.ID)
					if err != nil {
						return fmt.Errorf("mint invite code: %w", err)
					}

					return t.Send(ctx, fmt.Sprintf(
						"Group %q created. Invite code: %s", group.Name, code))
				},
			},
		},
	}
}

// Invite asks for a group and replaces its invite code with a fresh one.
func Invite() *conversation.Definition {
	return &conversation.Definition{
		Token:       "/invite",
		Description: "Mint a fresh invite code for a group",
		Roles:       []string{RoleAdmin, RoleTeacher},
		States: []conversation.State{
			conversation.PromptState{
				Prompt:   "Which group needs a new invite code?",
				Key:      "group_name",
				Validate: conversation.NonBlank("Group name"),
			},
			conversation.ActionState{
				Name: "mint_invite",
				Run: func(ctx context.Context, t *conversation.Turn) error {
					name := mustString(t, "group_name")

					group, err := t.Services.Groups.ByName(ctx, name)
					if errors.Is(err, conversation.ErrNotFound) {
						return conversation.Collab("group.lookup",
							fmt.Sprintf("I could not find a group called %q.", name), err)
					}
					if err != nil {
						return fmt.Errorf("find group: %w", err)
					}

					code, err := t.Services.Invites.NewCode(ctx, group.ID)
					if err != nil {
						return fmt.Errorf("mint invite code: %w", err)
					}

					return t.Send(ctx, fmt.Sprintf(
						"New invite code for %q: %s\nThe previous code no longer works.",
						group.Name, code))
				},
			},
		},
	}
}

// Groups lists every study group; a single acting state, no prompting.
func Groups() *conversation.Definition {
	return &conversation.Definition{
		Token:       "/groups",
		Description: "List study groups",
		Roles:       []string{RoleAdmin, RoleTeacher},
		States: []conversation.State{
			conversation.ActionState{
				Name: "list_groups",
				Run: func(ctx context.Context, t *conversation.Turn) error {
					names, err := t.Services.Groups.Names(ctx)
					if err != nil {
						return fmt.Errorf("list groups: %w", err)
					}
					if len(names) == 0 {
						return t.Send(ctx, "No groups yet. Use /creategroup to add one.")
					}
					var b strings.Builder
					b.WriteString("Study groups:\n")
					for _, name := range names {
						b.WriteString("• ")
						b.WriteString(name)
						b.WriteByte('\n')
					}
					return t.Send(ctx, strings.TrimRight(b.String(), "\n"))
				},
			},
		},
	}
}
