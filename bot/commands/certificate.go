package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/edubot/core/conversation"
)

// Certificate collects a student email and a course name, records the
// certificate and notifies the student when their chat is linked.
func Certificate() *conversation.Definition {
	return &conversation.Definition{
		Token:       "/certificate",
		Description: "Issue a course certificate",
		Roles:       []string{RoleAdmin, RoleTeacher},
		States: []conversation.State{
			conversation.PromptState{
				Prompt:   "Student's email address?",
				Key:      "email",
				Validate: Email("Email"),
			},
			conversation.PromptState{
				Prompt:   "Which course did they complete?",
				Key:      "course",
				Validate: conversation.NonBlank("Course name"),
			},
			conversation.ActionState{
				Name: "issue_certificate",
				Run:  runIssueCertificate,
			},
		},
	}
}

func runIssueCertificate(ctx context.Context, t *conversation.Turn) error {
	email := mustString(t, "email")
	course := mustString(t, "course")

	user, err := t.Services.Users.ByEmail(ctx, email)
	if errors.Is(err, conversation.ErrNotFound) {
		return conversation.Collab("user.lookup",
			fmt.Sprintf("No student matches %q.", email), err)
	}
	if err != nil {
		return fmt.Errorf("find student: %w", err)
	}

	cert, err := t.Services.Certificates.Issue(ctx, user.ID, course)
	if err != nil {
		return fmt.Errorf("issue certificate: %w", err)
	}

	if user.ChatID != 0 {
		notice := fmt.Sprintf(
			"Congratulations! You completed %q. Certificate serial: %s",
			cert.Course, cert.Serial)
		if err := t.SendTo(ctx, user.ChatID, notice); err != nil {
			return fmt.Errorf("notify student: %w", err)
		}
	}

	return t.Send(ctx, fmt.Sprintf(
		"Certificate %s issued to %s for %q.", cert.Serial, user.Name, cert.Course))
}
