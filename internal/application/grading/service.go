// Package grading 测验抽题、提交与 AI 评分编排
package grading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"ai-tutor-api/internal/application/pricing"
	"ai-tutor-api/internal/application/prompt"
	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/repository"
	"ai-tutor-api/internal/domain/service"
	wfnode "ai-tutor-api/internal/workflow/node"
	apperrors "ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
	"ai-tutor-api/pkg/metrics"
)

// Config 评分调用参数
type Config struct {
	MaxTokens        int
	Temperature      float32
	QuestionsPerTest int
	CallTimeout      time.Duration
}

func NewConfig(cfg *config.Config) Config {
	return Config{
		MaxTokens:        cfg.Grading.MaxTokens,
		Temperature:      float32(cfg.Grading.Temperature),
		QuestionsPerTest: cfg.Grading.QuestionsPerTest,
		CallTimeout:      cfg.LLM.CallTimeout,
	}
}

type Service struct {
	cfg       Config
	pricing   *pricing.Table
	funds     service.FundsChecker
	meter     service.UsageMeter
	assembler *prompt.Assembler
	llm       service.LanguageModel
	courses   repository.CourseRepository
	tests     repository.TestRepository
	txMgr     repository.Transactor
	shuffle   shuffleFunc
}

func NewService(
	cfg Config,
	table *pricing.Table,
	funds service.FundsChecker,
	meter service.UsageMeter,
	assembler *prompt.Assembler,
	llm service.LanguageModel,
	courses repository.CourseRepository,
	tests repository.TestRepository,
	txMgr repository.Transactor,
) *Service {
	if cfg.QuestionsPerTest <= 0 {
		cfg.QuestionsPerTest = 10
	}
	return &Service{
		cfg:       cfg,
		pricing:   table,
		funds:     funds,
		meter:     meter,
		assembler: assembler,
		llm:       llm,
		courses:   courses,
		tests:     tests,
		txMgr:     txMgr,
	}
}

// StartTest 返回学生在课程下未提交的测验；没有则从题库抽题新建。created 表示是否新建。
func (s *Service) StartTest(ctx context.Context, studentID, courseID string) (*entity.Test, bool, error) {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, false, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if course == nil || !course.IsPublished {
		return nil, false, apperrors.ErrNotFound.WithDetail("course not found or not published")
	}

	enrolled, err := s.courses.IsEnrolled(ctx, courseID, studentID)
	if err != nil {
		return nil, false, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if !enrolled {
		return nil, false, apperrors.ErrNotEnrolled.WithDetail("you must be enrolled in this course to take a test")
	}

	active, err := s.tests.GetActive(ctx, courseID, studentID)
	if err != nil {
		return nil, false, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if active != nil {
		return active, false, nil
	}

	ids, err := s.courses.ListQuestionIDs(ctx, courseID)
	if err != nil {
		return nil, false, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if len(ids) < s.cfg.QuestionsPerTest {
		return nil, false, apperrors.ErrInvalidParam.WithDetail(
			fmt.Sprintf("course must have at least %d questions to create a test", s.cfg.QuestionsPerTest))
	}

	test := entity.NewTest(courseID, studentID, sampleQuestionIDs(ids, s.cfg.QuestionsPerTest, s.shuffle))
	if err := s.tests.Create(ctx, test); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, false, apperrors.ErrStorageUnavailable.WithError(err)
		}
		// 并发开始测验，返回已存在的那一份
		active, err = s.tests.GetActive(ctx, courseID, studentID)
		if err != nil || active == nil {
			return nil, false, apperrors.ErrStorageUnavailable.WithError(fmt.Errorf("reload active test: %w", err))
		}
		return active, false, nil
	}

	created, err := s.tests.GetByID(ctx, test.ID)
	if err != nil || created == nil {
		return nil, false, apperrors.ErrStorageUnavailable.WithError(fmt.Errorf("reload created test: %w", err))
	}
	logger.Info(ctx, "test created", "test_id", test.ID, "course_id", courseID, "questions", len(test.Questions))
	return created, true, nil
}

// AnswerSubmission 学生对单题的作答
type AnswerSubmission struct {
	QuestionID    string
	StudentAnswer string
}

type SubmitInput struct {
	AccountID string
	TestID    string
	Answers   []AnswerSubmission
	Model     string
}

type SubmitResult struct {
	Test  *entity.Test
	Grade *GradeResult
}

// SubmitTest 校验归属与提交状态后保存作答并评分
func (s *Service) SubmitTest(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	test, err := s.tests.GetByID(ctx, in.TestID)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	if test == nil {
		return nil, apperrors.ErrTestNotFound.WithDetail(in.TestID)
	}
	if !test.IsOwnedBy(in.AccountID) {
		return nil, apperrors.ErrForbidden.WithDetail("this is not your test")
	}
	if test.IsSubmitted() {
		return nil, apperrors.ErrAlreadySubmitted
	}

	inTest := make(map[string]struct{}, len(test.Questions))
	for _, q := range test.Questions {
		inTest[q.QuestionID] = struct{}{}
	}
	submitted := make(map[string]string, len(in.Answers))
	for _, a := range in.Answers {
		if _, ok := inTest[a.QuestionID]; !ok {
			return nil, apperrors.ErrInvalidParam.WithDetail("question " + a.QuestionID + " is not part of this test")
		}
		submitted[a.QuestionID] = a.StudentAnswer
	}

	if _, err := s.pricing.Resolve(in.Model); err != nil {
		return nil, err
	}
	if err := s.funds.EnsureFunds(ctx, in.AccountID, service.WorkflowGrading); err != nil {
		return nil, err
	}

	if err := s.tests.SaveAnswers(ctx, test.ID, submitted); err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}

	answers := make([]prompt.GradingAnswer, 0, len(test.Questions))
	for _, q := range test.Questions {
		ga := prompt.GradingAnswer{QuestionID: q.QuestionID}
		if q.Question != nil {
			ga.Question = q.Question.Question
			ga.CorrectAnswer = q.Question.Answer
			ga.Explanation = q.Question.Explanation
		}
		if a, ok := submitted[q.QuestionID]; ok {
			ga.StudentAnswer = a
		} else if q.StudentAnswer != nil {
			ga.StudentAnswer = *q.StudentAnswer
		}
		answers = append(answers, ga)
	}

	grade, err := s.GradeTest(ctx, GradeInput{
		AccountID: in.AccountID,
		TestID:    test.ID,
		Answers:   answers,
		Model:     in.Model,
	})
	if err != nil {
		return nil, err
	}

	graded, err := s.tests.GetByID(ctx, test.ID)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.WithError(err)
	}
	return &SubmitResult{Test: graded, Grade: grade}, nil
}

type GradeInput struct {
	AccountID string
	TestID    string
	Answers   []prompt.GradingAnswer
	Model     string
}

type GradeResult struct {
	TotalScore  int
	MaxScore    int
	Results     []QuestionResult
	Transaction *entity.LedgerTransaction
	Billed      bool
}

// GradeTest 调用模型评分，在同一事务内写入单题评分并标记提交，成功后计费。
// 测验已被其他请求提交时整体回滚并返回 AlreadySubmitted，不计费。
func (s *Service) GradeTest(ctx context.Context, in GradeInput) (*GradeResult, error) {
	if len(in.Answers) == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("answers are required")
	}
	price, err := s.pricing.Resolve(in.Model)
	if err != nil {
		return nil, err
	}
	if err := s.funds.EnsureFunds(ctx, in.AccountID, service.WorkflowGrading); err != nil {
		return nil, err
	}

	system, user, err := s.assembler.AssembleGradingPrompt(in.Answers)
	if err != nil {
		return nil, err
	}

	callCtx := context.WithoutCancel(ctx)
	res, err := s.llm.Complete(callCtx, service.CompletionRequest{
		Workflow:      service.WorkflowGrading,
		Model:         price.Model,
		Provider:      price.Provider,
		UpstreamModel: price.UpstreamModel,
		Messages:      []*schema.Message{schema.SystemMessage(system), schema.UserMessage(user)},
		MaxTokens:     s.cfg.MaxTokens,
		Temperature:   s.cfg.Temperature,
		JSONObject:    true,
		Timeout:       s.cfg.CallTimeout,
	})
	if err != nil {
		metrics.GradingTotal.WithLabelValues(price.Model, "upstream_error").Inc()
		return nil, err
	}

	results, err := ParseResults(callCtx, res.Content, in.Answers)
	if err != nil {
		metrics.GradingTotal.WithLabelValues(price.Model, "invalid_response").Inc()
		logger.Error(ctx, "grading response could not be parsed", err,
			"test_id", in.TestID,
			"content", wfnode.ClipForLog(res.Content, 512),
		)
		return nil, err
	}
	percentage, err := Percentage(results, len(in.Answers))
	if err != nil {
		return nil, apperrors.ErrInvalidParam.WithError(err)
	}

	grades := make([]repository.QuestionGrade, 0, len(results))
	for _, r := range results {
		grades = append(grades, repository.QuestionGrade{QuestionID: r.QuestionID, Score: r.Score, Feedback: r.Feedback})
	}
	applyErr := s.txMgr.WithTransaction(callCtx, func(txCtx context.Context) error {
		if err := s.tests.ApplyGrades(txCtx, in.TestID, grades); err != nil {
			return apperrors.ErrStorageUnavailable.WithError(err)
		}
		ok, err := s.tests.MarkSubmitted(txCtx, in.TestID, percentage, time.Now())
		if err != nil {
			return apperrors.ErrStorageUnavailable.WithError(err)
		}
		if !ok {
			return apperrors.ErrAlreadySubmitted
		}
		return nil
	})

	if applyErr != nil {
		// 评分未落库（含并发提交落败）不计费
		metrics.GradingTotal.WithLabelValues(price.Model, "rejected").Inc()
		logger.Warn(ctx, "grading not applied, usage not billed",
			"test_id", in.TestID,
			"error", applyErr.Error(),
			"prompt_tokens", res.PromptTokens,
			"completion_tokens", res.CompletionTokens,
		)
		return nil, applyErr
	}

	tx, meterErr := s.meter.MeterUsage(callCtx, service.LLMUsageInput{
		AccountID:        in.AccountID,
		Workflow:         service.WorkflowGrading,
		Model:            price.Model,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		Notes:            "Test grading for test " + in.TestID,
	})
	if meterErr != nil {
		logger.Error(ctx, "grading completed but not billed", meterErr, "test_id", in.TestID)
	}

	metrics.GradingTotal.WithLabelValues(price.Model, "success").Inc()
	metrics.GradingScore.Observe(float64(percentage))
	return &GradeResult{
		TotalScore:  percentage,
		MaxScore:    MaxScore,
		Results:     results,
		Transaction: tx,
		Billed:      meterErr == nil,
	}, nil
}
