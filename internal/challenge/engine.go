package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/goldseal/goldseal-backend/internal/clients/redisbus"
	pkgerrors "github.com/goldseal/goldseal-backend/internal/pkg/errors"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
	"github.com/goldseal/goldseal-backend/internal/types"
)

const questionsPerChallenge = 5

// difficultyQuota is the target mix per challenge, in selection order.
var difficultyQuota = []struct {
	Difficulty string
	Count      int
}{
	{types.DifficultyEasy, 2},
	{types.DifficultyMedium, 2},
	{types.DifficultyHard, 1},
}

// ChallengeQuestion is a question as presented to a student, with the
// correct answer withheld and the student's own response merged in.
type ChallengeQuestion struct {
	ID             uuid.UUID       `json:"id"`
	QuestionText   string          `json:"question_text"`
	Options        json.RawMessage `json:"options"`
	Answered       bool            `json:"answered"`
	SelectedAnswer string          `json:"selectedAnswer,omitempty"`
	IsCorrect      *bool           `json:"isCorrect,omitempty"`
}

// ChallengeView is today's challenge from one student's perspective.
type ChallengeView struct {
	ChallengeID uuid.UUID           `json:"challengeId"`
	Questions   []ChallengeQuestion `json:"questions"`
	Completed   bool                `json:"completed"`
	Score       *float64            `json:"score,omitempty"`
}

// SubmitResult is the immediate feedback for one answered question.
type SubmitResult struct {
	IsCorrect   bool   `json:"isCorrect"`
	Explanation string `json:"explanation"`
}

// Engine creates daily challenges and grades responses. Selection mixes
// spaced repetition (questions the student got wrong) with unseen
// material, under a fixed difficulty quota.
type Engine struct {
	log        *logger.Logger
	questions  repos.QuestionRepo
	challenges repos.ChallengeRepo
	responses  repos.ResponseRepo
	students   repos.StudentRepo
	bus        redisbus.EventBus
	rng        *rand.Rand
}

// NewEngine wires the engine. bus may be nil; challenge-created events
// are then skipped.
func NewEngine(
	log *logger.Logger,
	questions repos.QuestionRepo,
	challenges repos.ChallengeRepo,
	responses repos.ResponseRepo,
	students repos.StudentRepo,
	bus redisbus.EventBus,
) *Engine {
	return &Engine{
		log:        log.With("service", "ChallengeEngine"),
		questions:  questions,
		challenges: challenges,
		responses:  responses,
		students:   students,
		bus:        bus,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SelectDailyQuestions picks a personalized question set for one
// student. Per difficulty, up to half the quota comes from questions the
// student previously answered wrong, the rest from verified questions
// the student has never seen. Any shortfall is backfilled from the full
// verified pool before the final shuffle.
func (e *Engine) SelectDailyQuestions(ctx context.Context, studentID uuid.UUID, license string) ([]uuid.UUID, error) {
	history, err := e.responses.ListByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, err
	}

	answered := make([]uuid.UUID, 0, len(history))
	var incorrect []uuid.UUID
	for _, r := range history {
		answered = append(answered, r.QuestionID)
		if !r.IsCorrect {
			incorrect = append(incorrect, r.QuestionID)
		}
	}

	var selected []uuid.UUID
	for _, quota := range difficultyQuota {
		taken := 0

		if len(incorrect) > 0 {
			wrongCap := (quota.Count + 1) / 2
			wrong, err := e.questions.ListVerifiedIDs(ctx, nil, repos.VerifiedFilter{
				License:    license,
				Difficulty: quota.Difficulty,
				OnlyIDs:    incorrect,
				ExcludeIDs: selected,
				Limit:      wrongCap,
			})
			if err != nil {
				return nil, err
			}
			selected = append(selected, wrong...)
			taken += len(wrong)
		}

		if taken < quota.Count {
			unseen, err := e.questions.ListVerifiedIDs(ctx, nil, repos.VerifiedFilter{
				License:    license,
				Difficulty: quota.Difficulty,
				ExcludeIDs: append(append([]uuid.UUID{}, selected...), answered...),
				Limit:      quota.Count - taken,
			})
			if err != nil {
				return nil, err
			}
			selected = append(selected, unseen...)
		}
	}

	if len(selected) < questionsPerChallenge {
		fill, err := e.questions.ListVerifiedIDs(ctx, nil, repos.VerifiedFilter{
			License:    license,
			ExcludeIDs: selected,
			Limit:      questionsPerChallenge - len(selected),
		})
		if err != nil {
			return nil, err
		}
		selected = append(selected, fill...)
	}

	e.shuffle(selected)
	if len(selected) > questionsPerChallenge {
		selected = selected[:questionsPerChallenge]
	}
	return selected, nil
}

// CreateDailyChallenge builds the shared challenge for one license track
// and date. Creation is idempotent: an existing challenge for the
// (date, license) pair is returned as is. Fewer than five verified
// questions in the pool is an error, not a short challenge.
func (e *Engine) CreateDailyChallenge(ctx context.Context, license string, date string) (*types.DailyChallenge, error) {
	existing, err := e.challenges.GetByDate(ctx, nil, date, license)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	total, err := e.questions.CountVerified(ctx, nil, license)
	if err != nil {
		return nil, err
	}
	if total < questionsPerChallenge {
		return nil, fmt.Errorf("not enough verified questions for license %s challenge: have %d, need %d",
			license, total, questionsPerChallenge)
	}

	var selected []uuid.UUID
	for _, quota := range difficultyQuota {
		pool, err := e.questions.ListVerifiedIDs(ctx, nil, repos.VerifiedFilter{
			License:    license,
			Difficulty: quota.Difficulty,
		})
		if err != nil {
			return nil, err
		}
		e.shuffle(pool)
		if len(pool) > quota.Count {
			pool = pool[:quota.Count]
		}
		selected = append(selected, pool...)
	}

	// A thin difficulty pool leaves the quota short; top up from the
	// whole verified pool so the challenge always has five questions.
	if len(selected) < questionsPerChallenge {
		fill, err := e.questions.ListVerifiedIDs(ctx, nil, repos.VerifiedFilter{
			License:    license,
			ExcludeIDs: selected,
			Limit:      questionsPerChallenge - len(selected),
		})
		if err != nil {
			return nil, err
		}
		selected = append(selected, fill...)
	}
	e.shuffle(selected)
	if len(selected) > questionsPerChallenge {
		selected = selected[:questionsPerChallenge]
	}

	idsJSON, err := json.Marshal(selected)
	if err != nil {
		return nil, fmt.Errorf("marshal question ids: %w", err)
	}

	created := &types.DailyChallenge{
		ChallengeDate: date,
		LicenseType:   license,
		QuestionIDs:   datatypes.JSON(idsJSON),
	}
	if err := e.challenges.Create(ctx, nil, created); err != nil {
		return nil, err
	}

	e.log.Info("created daily challenge", "date", date, "license", license, "questions", len(selected))

	if e.bus != nil {
		event := redisbus.ChallengeCreatedEvent{
			ChallengeID:   created.ID,
			ChallengeDate: date,
			LicenseType:   license,
			QuestionCount: len(selected),
			CreatedAt:     time.Now().UTC(),
		}
		if err := e.bus.PublishChallengeCreated(ctx, event); err != nil {
			e.log.Warn("failed to publish challenge.created", "challenge_id", created.ID, "error", err)
		}
	}

	return created, nil
}

// GetTodaysChallenge returns the current challenge for a license track
// merged with the student's responses so far. Correct answers are never
// included.
func (e *Engine) GetTodaysChallenge(ctx context.Context, studentID uuid.UUID, license string) (*ChallengeView, error) {
	today := time.Now().UTC().Format("2006-01-02")

	challenge, err := e.challenges.GetByDate(ctx, nil, today, license)
	if err != nil {
		return nil, err
	}

	questionIDs, err := parseQuestionIDs(challenge.QuestionIDs)
	if err != nil {
		return nil, err
	}

	questions, err := e.questions.GetByIDs(ctx, nil, questionIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	responses, err := e.responses.ListByStudentChallenge(ctx, nil, studentID, challenge.ID)
	if err != nil {
		return nil, err
	}
	responseByQuestion := make(map[uuid.UUID]*types.ChallengeResponse, len(responses))
	for _, r := range responses {
		responseByQuestion[r.QuestionID] = r
	}

	view := &ChallengeView{
		ChallengeID: challenge.ID,
		Questions:   make([]ChallengeQuestion, 0, len(questionIDs)),
	}

	answeredCount := 0
	correctCount := 0
	for _, id := range questionIDs {
		q, ok := byID[id]
		if !ok {
			continue
		}
		cq := ChallengeQuestion{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Options:      json.RawMessage(q.Options),
		}
		if r, ok := responseByQuestion[id]; ok {
			cq.Answered = true
			cq.SelectedAnswer = r.SelectedAnswer
			correct := r.IsCorrect
			cq.IsCorrect = &correct
			answeredCount++
			if correct {
				correctCount++
			}
		}
		view.Questions = append(view.Questions, cq)
	}

	view.Completed = answeredCount == len(view.Questions) && len(view.Questions) > 0
	if answeredCount > 0 {
		score := float64(correctCount) / float64(answeredCount)
		view.Score = &score
	}

	return view, nil
}

// SubmitResponse grades one answer against the stored correct answer and
// records it. Resubmitting the same question overwrites the earlier
// response without re-triggering completion. Completing the final
// question of a challenge advances the student's streak exactly once.
func (e *Engine) SubmitResponse(ctx context.Context, studentID, challengeID, questionID uuid.UUID, selectedAnswer string) (*SubmitResult, error) {
	challenge, err := e.challenges.GetByID(ctx, nil, challengeID)
	if err != nil {
		return nil, err
	}
	questionIDs, err := parseQuestionIDs(challenge.QuestionIDs)
	if err != nil {
		return nil, err
	}
	if !containsUUID(questionIDs, questionID) {
		return nil, fmt.Errorf("%w: question %s is not part of challenge %s", pkgerrors.ErrInvalidArgument, questionID, challengeID)
	}

	question, err := e.questions.GetByID(ctx, nil, questionID)
	if err != nil {
		return nil, err
	}

	isCorrect := selectedAnswer == question.CorrectAnswer

	createdNew, err := e.responses.Upsert(ctx, nil, &types.ChallengeResponse{
		StudentID:      studentID,
		ChallengeID:    challengeID,
		QuestionID:     questionID,
		SelectedAnswer: selectedAnswer,
		IsCorrect:      isCorrect,
	})
	if err != nil {
		return nil, err
	}

	if createdNew {
		count, err := e.responses.CountByStudentChallenge(ctx, nil, studentID, challengeID)
		if err != nil {
			return nil, err
		}
		if count == int64(len(questionIDs)) {
			if err := e.advanceStreak(ctx, studentID, challenge.ChallengeDate); err != nil {
				e.log.Warn("failed to advance streak", "student_id", studentID, "error", err)
			}
		}
	}

	return &SubmitResult{
		IsCorrect:   isCorrect,
		Explanation: question.Explanation,
	}, nil
}

// advanceStreak bumps the streak when the completed challenge is the day
// after the student's last completion, otherwise restarts at one. A
// repeat completion on the same date is a no-op.
func (e *Engine) advanceStreak(ctx context.Context, studentID uuid.UUID, challengeDate string) error {
	student, err := e.students.GetByID(ctx, nil, studentID)
	if err != nil {
		return err
	}

	completedOn, err := time.Parse("2006-01-02", challengeDate)
	if err != nil {
		return fmt.Errorf("parse challenge date %q: %w", challengeDate, err)
	}

	current := 1
	if student.LastChallengeDate != nil {
		last := student.LastChallengeDate.Format("2006-01-02")
		switch last {
		case challengeDate:
			return nil
		case completedOn.AddDate(0, 0, -1).Format("2006-01-02"):
			current = student.CurrentStreak + 1
		}
	}

	longest := student.LongestStreak
	if current > longest {
		longest = current
	}

	if err := e.students.UpdateStreak(ctx, nil, studentID, current, longest, completedOn); err != nil {
		return err
	}
	e.log.Info("advanced streak", "student_id", studentID, "current", current, "longest", longest)
	return nil
}

func (e *Engine) shuffle(ids []uuid.UUID) {
	e.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

func parseQuestionIDs(raw datatypes.JSON) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode challenge question ids: %w", err)
	}
	return ids, nil
}

func containsUUID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, pkgerrors.ErrNotFound)
}
