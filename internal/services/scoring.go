package services

import (
	"math"
	"strings"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

// ===== SCORING =====

// ScoreSummary is the outcome of scoring every answer of an attempt
type ScoreSummary struct {
	Score          float64
	MaxScore       float64
	Percentage     float64
	Passed         bool
	PendingGrading int
}

// EvaluateAnswer scores one answer against its question.
// Choice answers are graded immediately; free text waits for a grader.
// Answers that were already graded by hand keep their marks.
func EvaluateAnswer(question *models.Question, answer *models.Answer) {
	if answer.GradedAt != nil {
		return
	}

	if requiresOptions(question) {
		answer.NeedsManualGrading = false
		selected := answer.OptionIDs()
		if len(selected) == 0 {
			answer.IsCorrect = boolPtr(false)
			answer.MarksObtained = 0
			return
		}
		if sameOptionSet(selected, question.CorrectOptionIDs()) {
			answer.IsCorrect = boolPtr(true)
			answer.MarksObtained = question.Marks
			return
		}
		answer.IsCorrect = boolPtr(false)
		answer.MarksObtained = -question.NegativeMarks
		return
	}

	if answer.TextAnswer == nil || strings.TrimSpace(*answer.TextAnswer) == "" {
		answer.IsCorrect = boolPtr(false)
		answer.MarksObtained = 0
		answer.NeedsManualGrading = false
		return
	}
	answer.IsCorrect = nil
	answer.MarksObtained = 0
	answer.NeedsManualGrading = true
}

// Summarize totals the answers; the score never drops below zero
func Summarize(answers []*models.Answer, maxScore, passingPercentage float64) ScoreSummary {
	summary := ScoreSummary{MaxScore: maxScore}
	for _, answer := range answers {
		summary.Score += answer.MarksObtained
		if pendingGrading(answer) {
			summary.PendingGrading++
		}
	}

	summary.Score = math.Max(0, roundScore(summary.Score))
	if maxScore > 0 {
		summary.Percentage = roundScore(summary.Score / maxScore * 100)
	}
	summary.Passed = summary.PendingGrading == 0 && summary.Percentage >= passingPercentage
	return summary
}

func pendingGrading(answer *models.Answer) bool {
	return answer.NeedsManualGrading && answer.GradedAt == nil
}

func requiresOptions(question *models.Question) bool {
	if question.QuestionType != nil {
		return question.QuestionType.RequiresOptions
	}
	return len(question.Options) > 0
}

func sameOptionSet(selected, correct []uint) bool {
	return len(correct) > 0 && sameIDSet(selected, correct)
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

func boolPtr(v bool) *bool {
	return &v
}
