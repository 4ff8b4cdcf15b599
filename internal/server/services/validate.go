package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/cryptox"
	"github.com/dmitrijs2005/passvault/internal/server/models"
)

const (
	maxUsernameLen = 50
	maxPersonName  = 50
	maxCredName    = 100
	maxSecretLen   = 256
	maxQuestionLen = 256
	maxAnswerLen   = 256
)

// requireText checks that v is non-blank and at most max characters long.
func requireText(field, v string, max int) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s", common.ErrFieldRequired, field)
	}
	return maxText(field, v, max)
}

func maxText(field, v string, max int) error {
	if utf8.RuneCountInString(v) > max {
		return fmt.Errorf("%w: %s must be at most %d characters", common.ErrFieldTooLong, field, max)
	}
	return nil
}

func validatePassword(field, pw string) error {
	if pw == "" {
		return fmt.Errorf("%w: %s", common.ErrFieldRequired, field)
	}
	if len(pw) > cryptox.MaxPasswordBytes {
		return fmt.Errorf("%w: %s must be at most %d bytes", common.ErrFieldTooLong, field, cryptox.MaxPasswordBytes)
	}
	return nil
}

// validateQuestions enforces the per-credential question rules: at most 15,
// every question paired with an answer, no repeated question text.
func validateQuestions(qs []models.QuestionInput) error {
	if len(qs) > common.MaxQuestionsPerCredential {
		return common.ErrTooManyQuestions
	}

	seen := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Answer) == "" {
			return common.ErrUnpairedQuestion
		}
		if err := maxText("question", q.Question, maxQuestionLen); err != nil {
			return err
		}
		if err := maxText("answer", q.Answer, maxAnswerLen); err != nil {
			return err
		}
		if _, dup := seen[q.Question]; dup {
			return common.ErrDuplicateQuestion
		}
		seen[q.Question] = struct{}{}
	}
	return nil
}
