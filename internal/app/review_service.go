package app

import (
	"context"
	"encoding/json"
	"fmt"

	"assessment-engine/internal/domain"
	"assessment-engine/internal/grading"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
)

const defaultPageSize = 10

type ReviewItem struct {
	QuestionID string              `json:"questionId"`
	Kind       domain.QuestionKind `json:"kind"`
	Prompt     string              `json:"prompt"`
	Answer     json.RawMessage     `json:"answer,omitempty"`
	MaxMarks   float64             `json:"maxMarks"`
	Mark       float64             `json:"mark"`
	Reviewed   bool                `json:"reviewed"`
}

type ReviewPage struct {
	SubmissionID string       `json:"submissionId"`
	Items        []ReviewItem `json:"items"`
	Page         int          `json:"page"`
	Size         int          `json:"size"`
	TotalItems   int          `json:"totalItems"`
	TotalPages   int          `json:"totalPages"`
}

// SubmissionSummary is the reviewer's row for one submission.
type SubmissionSummary struct {
	ID             string                  `json:"id"`
	CandidateID    string                  `json:"candidateId"`
	CandidateName  string                  `json:"candidateName"`
	Email          string                  `json:"email"`
	Status         domain.SubmissionStatus `json:"status"`
	IsReviewed     bool                    `json:"isReviewed"`
	TimeUsed       int                     `json:"timeUsed"`
	Total          float64                 `json:"total"`
	Obtainable     float64                 `json:"obtainable"`
	Percentage     float64                 `json:"percentage"`
	CheatingStatus domain.CheatingStatus   `json:"cheatingStatus"`
	Passed         bool                    `json:"passed"`
	Provisional    bool                    `json:"provisional"`
}

type AssessmentSummary struct {
	AssessmentID string                        `json:"assessmentId"`
	Submissions  []SubmissionSummary           `json:"submissions"`
	Qualified    int                           `json:"qualified"`
	Cheating     map[domain.CheatingStatus]int `json:"cheating"`
}

// ReviewService is the manual review workflow for open-ended answers.
type ReviewService struct {
	definitions DefinitionRepository
	submissions SubmissionRepository
}

func NewReviewService(definitions DefinitionRepository, submissions SubmissionRepository) *ReviewService {
	return &ReviewService{definitions: definitions, submissions: submissions}
}

// Queue pages through the items awaiting manual review, in definition order. Pages start at 1.
func (s *ReviewService) Queue(ctx context.Context, submissionID string, page, size int) (ReviewPage, error) {
	sub, err := s.submissions.Get(ctx, submissionID)
	if err != nil {
		return ReviewPage{}, err
	}
	if sub.Grade == nil {
		return ReviewPage{}, domain.ErrNotGraded
	}
	def, err := s.definitions.GetDefinition(ctx, sub.AssessmentID)
	if err != nil {
		return ReviewPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}

	var queue []ReviewItem
	for _, it := range sub.Grade.Items {
		if !it.NeedsManualReview {
			continue
		}
		item := ReviewItem{
			QuestionID: it.QuestionID,
			Kind:       it.Kind,
			MaxMarks:   it.MaxMarks,
			Mark:       it.ObtainedMarks,
			Reviewed:   it.Reviewed,
		}
		if q, ok := def.Question(it.QuestionID); ok {
			item.Prompt = q.Prompt
		}
		if ans, ok := sub.Answers[it.QuestionID]; ok {
			if raw, err := domain.EncodeAnswer(ans); err == nil {
				item.Answer = raw
			}
		}
		queue = append(queue, item)
	}

	out := ReviewPage{
		SubmissionID: submissionID,
		Page:         page,
		Size:         size,
		TotalItems:   len(queue),
		TotalPages:   (len(queue) + size - 1) / size,
		Items:        []ReviewItem{},
	}
	start := (page - 1) * size
	if start < len(queue) {
		end := start + size
		if end > len(queue) {
			end = len(queue)
		}
		out.Items = queue[start:end]
	}
	return out, nil
}

// AssignMark stores one manual mark and recomputes the totals.
func (s *ReviewService) AssignMark(ctx context.Context, submissionID, questionID string, mark float64, reviewer string) (domain.Submission, error) {
	sub, err := s.submissions.Get(ctx, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	def, err := s.definitions.GetDefinition(ctx, sub.AssessmentID)
	if err != nil {
		return domain.Submission{}, err
	}

	updated, err := s.submissions.Update(ctx, submissionID, func(cur *domain.Submission) error {
		if cur.Grade == nil {
			return domain.ErrNotGraded
		}
		item, ok := cur.Grade.Item(questionID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
		}
		if !item.NeedsManualReview {
			return fmt.Errorf("%w: %s", domain.ErrNotReviewable, questionID)
		}
		if mark < 0 || mark > item.MaxMarks {
			return fmt.Errorf("%w: %v not in [0, %v]", domain.ErrMarkOutOfRange, mark, item.MaxMarks)
		}
		item.ObtainedMarks = mark
		item.Reviewed = true
		grading.Recompute(cur.Grade, def.PassingPercentage, cur.IsReviewed)
		cur.AddReviewer(reviewer)
		return nil
	})
	if err != nil {
		return domain.Submission{}, err
	}
	log.Info().Str("submissionID", submissionID).Str("questionID", questionID).
		Float64("mark", mark).Str("reviewer", reviewer).Msg("manual mark assigned")
	return updated, nil
}

// Finish closes the review. Calling it again yields the same record.
func (s *ReviewService) Finish(ctx context.Context, submissionID, reviewer string) (domain.Submission, error) {
	sub, err := s.submissions.Get(ctx, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	def, err := s.definitions.GetDefinition(ctx, sub.AssessmentID)
	if err != nil {
		return domain.Submission{}, err
	}
	return s.submissions.Update(ctx, submissionID, func(cur *domain.Submission) error {
		if cur.Grade == nil {
			return domain.ErrNotGraded
		}
		grading.Finalize(cur.Grade, def.PassingPercentage)
		cur.IsReviewed = true
		cur.AddReviewer(reviewer)
		return nil
	})
}

// Summary lists every submission of an assessment with time used, score and integrity bucket.
func (s *ReviewService) Summary(ctx context.Context, assessmentID string) (AssessmentSummary, error) {
	def, err := s.definitions.GetDefinition(ctx, assessmentID)
	if err != nil {
		return AssessmentSummary{}, err
	}
	subs, err := s.submissions.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return AssessmentSummary{}, err
	}

	out := AssessmentSummary{
		AssessmentID: assessmentID,
		Submissions:  make([]SubmissionSummary, 0, len(subs)),
		Cheating:     make(map[domain.CheatingStatus]int),
	}
	for _, sub := range subs {
		var row SubmissionSummary
		if err := copier.Copy(&row, &sub); err != nil {
			return AssessmentSummary{}, fmt.Errorf("map submission %s: %w", sub.ID, err)
		}
		row.TimeUsed = def.TimeLimitSeconds() - sub.Timer
		if sub.Grade != nil {
			if err := copier.Copy(&row, sub.Grade); err != nil {
				return AssessmentSummary{}, fmt.Errorf("map grade %s: %w", sub.ID, err)
			}
			if row.Passed {
				out.Qualified++
			}
			out.Cheating[row.CheatingStatus]++
		}
		out.Submissions = append(out.Submissions, row)
	}
	return out, nil
}
