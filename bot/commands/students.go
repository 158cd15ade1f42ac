package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/edubot/core/conversation"
)

// AddStudent collects an email and a group, creates the account and joins
// it into the group.
func AddStudent() *conversation.Definition {
	return &conversation.Definition{
		Token:       "/addstudent",
		Description: "Enroll a student into a group",
		Roles:       []string{RoleAdmin, RoleTeacher},
		States: []conversation.State{
			conversation.PromptState{
				Prompt:   "Student's email address?",
				Key:      "email",
				Validate: Email("Email"),
			},
			conversation.PromptState{
				Prompt:   "Student's full name?",
				Key:      "name",
				Validate: conversation.NonBlank("Name"),
			},
			conversation.PromptState{
				Prompt:   "Which group should they join?",
				Key:      "group_name",
				Validate: conversation.NonBlank("Group name"),
			},
			conversation.ActionState{
				Name: "enroll_student",
				Run:  runEnrollStudent,
			},
		},
	}
}

func runEnrollStudent(ctx context.Context, t *conversation.Turn) error {
	email := mustString(t, "email")
	name := mustString(t, "name")
	groupName := mustString(t, "group_name")

	group, err := t.Services.Groups.ByName(ctx, groupName)
	if errors.Is(err, conversation.ErrNotFound) {
		return conversation.Collab("group.lookup",
			fmt.Sprintf("I could not find a group called %q. Create it with /creategroup first.", groupName), err)
	}
	if err != nil {
		return fmt.Errorf("find group: %w", err)
	}

	user, err := t.Services.Users.Create(ctx, conversation.User{
		Name:  name,
		Email: email,
		Role:  RoleStudent,
	})
	switch {
	case errors.Is(err, conversation.ErrConflict):
		// Existing account: enroll it instead of failing.
		user, err = t.Services.Users.ByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("find existing student: %w", err)
		}
	case err != nil:
		return fmt.Errorf("create student: %w", err)
	}

	if err := t.Services.Groups.AddMember(ctx, group.ID, user.ID); err != nil {
		return fmt.Errorf("join group: %w", err)
	}

	return t.Send(ctx, fmt.Sprintf(
		"%s is enrolled in %q. Share invite code %s so they can link their chat.",
		user.Name, group.Name, group.InviteCode))
}

// Block asks for an email or phone and revokes the matching user's access.
func Block() *conversation.Definition {
	return accessToggle("/block", "Block a user", true,
		"Email or phone of the user to block?",
		"%s is blocked and will no longer receive messages.")
}

// Unblock restores access for a previously blocked user.
func Unblock() *conversation.Definition {
	return accessToggle("/unblock", "Unblock a user", false,
		"Email or phone of the user to unblock?",
		"%s can use the platform again.")
}

func accessToggle(token, description string, blocked bool, prompt, done string) *conversation.Definition {
	return &conversation.Definition{
		Token:       token,
		Description: description,
		Roles:       []string{RoleAdmin},
		States: []conversation.State{
			conversation.PromptState{
				Prompt:   prompt,
				Key:      "contact",
				Validate: EmailOrPhone("Contact"),
			},
			conversation.ActionState{
				Name: "toggle_access",
				Run: func(ctx context.Context, t *conversation.Turn) error {
					contact := mustString(t, "contact")

					user, err := lookupByContact(ctx, t, contact)
					if errors.Is(err, conversation.ErrNotFound) {
						return conversation.Collab("user.lookup",
							fmt.Sprintf("No user matches %q.", contact), err)
					}
					if err != nil {
						return fmt.Errorf("find user: %w", err)
					}

					if err := t.Services.Users.SetBlocked(ctx, user.ID, blocked); err != nil {
						return fmt.Errorf("set blocked: %w", err)
					}
					return t.Send(ctx, fmt.Sprintf(done, user.Name))
				},
			},
		},
	}
}

func lookupByContact(ctx context.Context, t *conversation.Turn, contact string) (conversation.User, error) {
	if isEmail(contact) {
		return t.Services.Users.ByEmail(ctx, contact)
	}
	return t.Services.Users.ByPhone(ctx, contact)
}
