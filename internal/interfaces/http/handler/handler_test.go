package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-api/internal/application/grading"
	"ai-tutor-api/internal/application/metering"
	"ai-tutor-api/internal/application/pricing"
	"ai-tutor-api/internal/application/prompt"
	"ai-tutor-api/internal/application/tutor"
	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/service"
	"ai-tutor-api/internal/testutil/memrepo"
	workflowprompt "ai-tutor-api/internal/workflow/prompt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedLLM 按工作流返回固定内容
type scriptedLLM struct {
	gradingContent string
}

func (l *scriptedLLM) Complete(_ context.Context, req service.CompletionRequest) (*service.CompletionResult, error) {
	if req.Workflow == service.WorkflowGrading {
		return &service.CompletionResult{Content: l.gradingContent, PromptTokens: 1000, CompletionTokens: 500}, nil
	}
	return &service.CompletionResult{Content: "Slices share their backing array.", PromptTokens: 1000, CompletionTokens: 500}, nil
}

type apiFixture struct {
	store  *memrepo.Store
	engine *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memrepo.NewStore()
	store.AddCourse(&entity.Course{ID: "course-1", Title: "Go Basics", IsPublished: true})
	store.AddChapter(&entity.Chapter{ID: "ch-1", CourseID: "course-1", Title: "Slices", Content: "Slices are views.", IsPublished: true})
	store.AddQuestion(&entity.Question{ID: "q1", CourseID: "course-1", Question: "What is len?", Answer: "Number of elements"})
	store.AddQuestion(&entity.Question{ID: "q2", CourseID: "course-1", Question: "What is cap?", Answer: "Backing array size"})
	store.Enroll("course-1", "stu-1")

	table, err := pricing.NewTable(map[string]config.ModelConfig{
		"gpt_4o_mini": {Provider: "openai", UpstreamModel: "gpt-4o-mini", PromptTokenCost: 0.15, CompletionTokenCost: 0.6},
	}, "gpt_4o_mini")
	require.NoError(t, err)

	ledger := metering.NewService(table, memrepo.LedgerRepository{Store: store}, memrepo.Transactor{Store: store})
	llm := &scriptedLLM{gradingContent: `{"results":[{"questionId":"q1","score":7,"feedback":"ok"},{"questionId":"q2","score":9,"feedback":"good"}]}`}
	assembler := prompt.NewAssembler(memrepo.CourseRepository{Store: store}, memrepo.MessageRepository{Store: store}, workflowprompt.NewRegistry(), nil)

	tutorSvc := tutor.NewService(
		tutor.Config{MaxTokens: 500, Temperature: 0.7, CallTimeout: time.Minute},
		table, ledger, ledger, assembler, llm,
		memrepo.CourseRepository{Store: store},
		memrepo.ConversationRepository{Store: store},
		memrepo.MessageRepository{Store: store},
	)
	gradingSvc := grading.NewService(
		grading.Config{MaxTokens: 2000, Temperature: 0.3, QuestionsPerTest: 2, CallTimeout: time.Minute},
		table, ledger, ledger, assembler, llm,
		memrepo.CourseRepository{Store: store},
		memrepo.TestRepository{Store: store},
		memrepo.Transactor{Store: store},
	)

	tutorH := NewTutorHandler(tutorSvc)
	testH := NewTestHandler(gradingSvc)
	creditH := NewCreditHandler(ledger)

	r := gin.New()
	// 以请求头模拟认证中间件注入的身份
	r.Use(func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-Test-User"))
		c.Set("role", "student")
		c.Next()
	})
	r.POST("/v1/chapters/:id/ask", tutorH.Ask)
	r.GET("/v1/chapters/:id/messages", tutorH.ListMessages)
	r.POST("/v1/courses/:id/tests", testH.StartTest)
	r.POST("/v1/tests/:id/submit", testH.SubmitTest)
	r.GET("/v1/tests/my-tests", testH.ListMyTests)
	r.GET("/v1/tests/leaderboard/:id", testH.Leaderboard)
	r.GET("/v1/tests/:id", testH.GetTest)
	r.GET("/v1/me/credits", creditH.GetBalance)
	r.GET("/v1/me/transactions", creditH.ListTransactions)
	r.GET("/v1/admin/accounts/:id/reconcile", creditH.Reconcile)

	return &apiFixture{store: store, engine: r}
}

func (f *apiFixture) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		ErrorCode string `json:"error_code"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestAsk_InsufficientCreditsIs402(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/v1/chapters/ch-1/ask", "stu-1", map[string]string{"question": "What is a slice?"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "4001", env.Error.ErrorCode)
}

func TestAsk_ReturnsAnswerAndCost(t *testing.T) {
	f := newAPIFixture(t)
	f.store.SetBalance("stu-1", decimal.NewFromInt(1))

	w := f.do(t, http.MethodPost, "/v1/chapters/ch-1/ask", "stu-1", map[string]string{"question": "What is a slice?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		ConversationID string `json:"conversation_id"`
		Answer         struct {
			Sender  string `json:"sender"`
			Content string `json:"content"`
		} `json:"answer"`
		Cost   string `json:"cost"`
		Billed bool   `json:"billed"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &data))
	assert.NotEmpty(t, data.ConversationID)
	assert.Equal(t, "AI", data.Answer.Sender)
	assert.Equal(t, "Slices share their backing array.", data.Answer.Content)
	assert.Equal(t, "0.00045", data.Cost)
	assert.True(t, data.Billed)

	w = f.do(t, http.MethodGet, "/v1/chapters/ch-1/messages", "stu-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &msgs))
	assert.Len(t, msgs, 2)

	w = f.do(t, http.MethodGet, "/v1/me/credits", "stu-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":"0.99955"`)
}

func TestAsk_ValidationErrors(t *testing.T) {
	f := newAPIFixture(t)
	f.store.SetBalance("stu-1", decimal.NewFromInt(1))

	w := f.do(t, http.MethodPost, "/v1/chapters/ch-1/ask", "stu-1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/v1/chapters/missing/ask", "stu-1", map[string]string{"question": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/v1/chapters/ch-1/ask", "stranger", map[string]string{"question": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTestFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.store.SetBalance("stu-1", decimal.NewFromInt(1))

	w := f.do(t, http.MethodPost, "/v1/courses/course-1/tests", "stu-1", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var test struct {
		ID        string `json:"id"`
		Questions []struct {
			QuestionID    string `json:"question_id"`
			CorrectAnswer string `json:"correct_answer"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &test))
	require.Len(t, test.Questions, 2)
	for _, q := range test.Questions {
		assert.Empty(t, q.CorrectAnswer)
	}

	w = f.do(t, http.MethodPost, "/v1/courses/course-1/tests", "stu-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	submitPath := fmt.Sprintf("/v1/tests/%s/submit", test.ID)
	body := map[string]any{"answers": []map[string]string{
		{"question_id": "q1", "answer": "elements"},
		{"question_id": "q2", "answer": "capacity"},
	}}
	w = f.do(t, http.MethodPost, submitPath, "stranger", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, submitPath, "stu-1", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var graded struct {
		TotalScore int `json:"total_score"`
		MaxScore   int `json:"max_score"`
		Test       struct {
			AIScore int `json:"ai_score"`
		} `json:"test"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &graded))
	assert.Equal(t, 80, graded.TotalScore)
	assert.Equal(t, 100, graded.MaxScore)
	assert.Equal(t, 80, graded.Test.AIScore)

	w = f.do(t, http.MethodPost, submitPath, "stu-1", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTestReadSide(t *testing.T) {
	f := newAPIFixture(t)
	f.store.SetBalance("stu-1", decimal.NewFromInt(1))

	w := f.do(t, http.MethodPost, "/v1/courses/course-1/tests", "stu-1", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &created))
	detailPath := "/v1/tests/" + created.ID

	type detail struct {
		AIScore   *int `json:"ai_score"`
		Questions []struct {
			CorrectAnswer string   `json:"correct_answer"`
			AIScore       *float64 `json:"ai_score"`
			AIFeedback    *string  `json:"ai_feedback"`
		} `json:"questions"`
	}

	w = f.do(t, http.MethodGet, detailPath, "stu-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var before detail
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &before))
	assert.Nil(t, before.AIScore)
	for _, q := range before.Questions {
		assert.Empty(t, q.CorrectAnswer)
		assert.Nil(t, q.AIScore)
	}

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, detailPath, "stranger", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/tests/missing", "stu-1", nil).Code)

	body := map[string]any{"answers": []map[string]string{
		{"question_id": "q1", "answer": "elements"},
		{"question_id": "q2", "answer": "capacity"},
	}}
	w = f.do(t, http.MethodPost, detailPath+"/submit", "stu-1", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, detailPath, "stu-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var after detail
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &after))
	require.NotNil(t, after.AIScore)
	assert.Equal(t, 80, *after.AIScore)
	require.Len(t, after.Questions, 2)
	for _, q := range after.Questions {
		assert.NotEmpty(t, q.CorrectAnswer)
		assert.NotNil(t, q.AIScore)
		assert.NotNil(t, q.AIFeedback)
	}

	w = f.do(t, http.MethodGet, "/v1/tests/my-tests", "stu-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var mine struct {
		Data []struct {
			ID            string `json:"id"`
			QuestionCount int    `json:"question_count"`
		} `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine.Data, 1)
	assert.Equal(t, created.ID, mine.Data[0].ID)
	assert.Equal(t, 2, mine.Data[0].QuestionCount)
	assert.Equal(t, 1, mine.Meta.Total)

	w = f.do(t, http.MethodGet, "/v1/tests/leaderboard/course-1", "stranger", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var board struct {
		Data []struct {
			Rank      int    `json:"rank"`
			TestID    string `json:"test_id"`
			StudentID string `json:"student_id"`
			Score     int    `json:"score"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board.Data, 1)
	assert.Equal(t, 1, board.Data[0].Rank)
	assert.Equal(t, created.ID, board.Data[0].TestID)
	assert.Equal(t, "stu-1", board.Data[0].StudentID)
	assert.Equal(t, 80, board.Data[0].Score)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/tests/leaderboard/nope", "stu-1", nil).Code)
}

func TestTransactionsAndReconcile(t *testing.T) {
	f := newAPIFixture(t)
	f.store.SetBalance("stu-1", decimal.NewFromInt(1))
	_ = f.do(t, http.MethodPost, "/v1/chapters/ch-1/ask", "stu-1", map[string]string{"question": "What is a slice?"})

	w := f.do(t, http.MethodGet, "/v1/me/transactions?page=1&page_size=1", "stu-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data []struct {
			Kind   string `json:"kind"`
			Amount string `json:"amount"`
		} `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "debit", page.Data[0].Kind)
	assert.Equal(t, "-0.00045", page.Data[0].Amount)
	assert.Equal(t, 2, page.Meta.Total)

	w = f.do(t, http.MethodGet, "/v1/admin/accounts/stu-1/reconcile", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"consistent":true`)
}
