// Package memrepo 提供仓储接口的内存实现，供应用层单元测试使用
package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/domain/repository"
)

// Store 所有内存仓储共享的数据
type Store struct {
	mu sync.Mutex

	Balances      map[string]*entity.CreditBalance
	Transactions  []*entity.LedgerTransaction
	PaymentEvents map[string]*entity.PaymentEvent

	Courses       map[string]*entity.Course
	Chapters      map[string]*entity.Chapter
	Questions     map[string]*entity.Question
	Enrollments   map[string]bool
	Conversations map[string]*entity.Conversation
	Messages      []*entity.Message
	Tests         map[string]*entity.Test

	// 故障注入
	FailAppend error
}

func NewStore() *Store {
	return &Store{
		Balances:      make(map[string]*entity.CreditBalance),
		PaymentEvents: make(map[string]*entity.PaymentEvent),
		Courses:       make(map[string]*entity.Course),
		Chapters:      make(map[string]*entity.Chapter),
		Questions:     make(map[string]*entity.Question),
		Enrollments:   make(map[string]bool),
		Conversations: make(map[string]*entity.Conversation),
		Tests:         make(map[string]*entity.Test),
	}
}

// SetBalance 直接设置余额并补一条对应流水，保持对账一致
func (s *Store) SetBalance(accountID string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Balances[accountID] = &entity.CreditBalance{AccountID: accountID, Balance: amount, Version: 1}
	s.Transactions = append(s.Transactions, entity.NewCreditTransaction(accountID, amount, "seed"))
}

func (s *Store) AddCourse(c *entity.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Courses[c.ID] = c
}

func (s *Store) AddChapter(c *entity.Chapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Chapters[c.ID] = c
}

func (s *Store) AddQuestion(q *entity.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Questions[q.ID] = q
}

func (s *Store) Enroll(courseID, studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Enrollments[courseID+"/"+studentID] = true
}

// MessagesOf 返回会话全部消息（按写入顺序）
func (s *Store) MessagesOf(conversationID string) []*entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Message
	for _, m := range s.Messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}

// TransactionsOf 返回账户全部流水
func (s *Store) TransactionsOf(accountID string) []*entity.LedgerTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.LedgerTransaction
	for _, t := range s.Transactions {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out
}

// Transactor 直接执行 fn；fn 出错时回滚账本写入
type Transactor struct {
	Store *Store
}

func (t Transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s := t.Store
	s.mu.Lock()
	balances := make(map[string]entity.CreditBalance, len(s.Balances))
	for k, v := range s.Balances {
		balances[k] = *v
	}
	txCount := len(s.Transactions)
	events := make(map[string]*entity.PaymentEvent, len(s.PaymentEvents))
	for k, v := range s.PaymentEvents {
		events[k] = v
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.Balances = make(map[string]*entity.CreditBalance, len(balances))
		for k, v := range balances {
			b := v
			s.Balances[k] = &b
		}
		s.Transactions = s.Transactions[:txCount]
		s.PaymentEvents = events
		s.mu.Unlock()
		return err
	}
	return nil
}

// LedgerRepository 内存账本
type LedgerRepository struct {
	Store *Store
}

func (r LedgerRepository) GetBalance(_ context.Context, accountID string) (*entity.CreditBalance, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	b, ok := r.Store.Balances[accountID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r LedgerRepository) ApplyDelta(_ context.Context, accountID string, delta decimal.Decimal) (*entity.CreditBalance, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	b, ok := r.Store.Balances[accountID]
	if !ok {
		b = &entity.CreditBalance{AccountID: accountID, Balance: decimal.Zero, CreatedAt: time.Now()}
		r.Store.Balances[accountID] = b
	}
	b.Balance = b.Balance.Add(delta)
	b.Version++
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (r LedgerRepository) AppendTransaction(_ context.Context, tx *entity.LedgerTransaction) error {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	if r.Store.FailAppend != nil {
		return r.Store.FailAppend
	}
	r.Store.Transactions = append(r.Store.Transactions, tx)
	return nil
}

func (r LedgerRepository) ListTransactions(_ context.Context, accountID string, pagination repository.Pagination) (*repository.PagedResult[*entity.LedgerTransaction], error) {
	r.Store.mu.Lock()
	var all []*entity.LedgerTransaction
	for i := len(r.Store.Transactions) - 1; i >= 0; i-- {
		if t := r.Store.Transactions[i]; t.AccountID == accountID {
			all = append(all, t)
		}
	}
	r.Store.mu.Unlock()
	return page(all, pagination), nil
}

func (r LedgerRepository) SumTransactions(_ context.Context, accountID string) (decimal.Decimal, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	sum := decimal.Zero
	for _, t := range r.Store.Transactions {
		if t.AccountID == accountID {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

// PaymentEventRepository 内存支付事件
type PaymentEventRepository struct {
	Store *Store
}

func (r PaymentEventRepository) Claim(_ context.Context, event *entity.PaymentEvent) (bool, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	if _, ok := r.Store.PaymentEvents[event.ProviderEventID]; ok {
		return false, nil
	}
	r.Store.PaymentEvents[event.ProviderEventID] = event
	return true, nil
}

func (r PaymentEventRepository) AttachTransaction(_ context.Context, providerEventID, transactionID string) error {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	if e, ok := r.Store.PaymentEvents[providerEventID]; ok {
		id := transactionID
		e.TransactionID = &id
	}
	return nil
}

// CourseRepository 内存课程目录
type CourseRepository struct {
	Store *Store
}

func (r CourseRepository) GetChapterWithCourse(_ context.Context, chapterID string) (*entity.Chapter, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	c, ok := r.Store.Chapters[chapterID]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Course = r.Store.Courses[c.CourseID]
	return &cp, nil
}

func (r CourseRepository) GetCourse(_ context.Context, courseID string) (*entity.Course, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	return r.Store.Courses[courseID], nil
}

func (r CourseRepository) IsEnrolled(_ context.Context, courseID, studentID string) (bool, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	return r.Store.Enrollments[courseID+"/"+studentID], nil
}

func (r CourseRepository) ListQuestionIDs(_ context.Context, courseID string) ([]string, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	var ids []string
	for id, q := range r.Store.Questions {
		if q.CourseID == courseID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ConversationRepository 内存会话
type ConversationRepository struct {
	Store *Store
}

func (r ConversationRepository) Create(_ context.Context, c *entity.Conversation) error {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	for _, existing := range r.Store.Conversations {
		if existing.ChapterID == c.ChapterID && existing.StudentID == c.StudentID {
			return repository.ErrDuplicate
		}
	}
	r.Store.Conversations[c.ID] = c
	return nil
}

func (r ConversationRepository) GetByID(_ context.Context, id string) (*entity.Conversation, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	return r.Store.Conversations[id], nil
}

func (r ConversationRepository) GetByChapterAndStudent(_ context.Context, chapterID, studentID string) (*entity.Conversation, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	for _, c := range r.Store.Conversations {
		if c.ChapterID == chapterID && c.StudentID == studentID {
			return c, nil
		}
	}
	return nil, nil
}

// MessageRepository 内存消息，写入顺序即时间顺序
type MessageRepository struct {
	Store *Store
}

func (r MessageRepository) Create(_ context.Context, m *entity.Message) error {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	r.Store.Messages = append(r.Store.Messages, m)
	return nil
}

func (r MessageRepository) ListEarliest(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	all := r.Store.MessagesOf(conversationID)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r MessageRepository) ListByConversation(_ context.Context, conversationID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Message], error) {
	return page(r.Store.MessagesOf(conversationID), pagination), nil
}

// TestRepository 内存测验
type TestRepository struct {
	Store *Store
}

func (r TestRepository) Create(_ context.Context, t *entity.Test) error {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	for _, existing := range r.Store.Tests {
		if existing.CourseID == t.CourseID && existing.StudentID == t.StudentID && !existing.IsSubmitted() {
			return repository.ErrDuplicate
		}
	}
	r.Store.Tests[t.ID] = t
	return nil
}

func (r TestRepository) GetByID(_ context.Context, id string) (*entity.Test, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	t, ok := r.Store.Tests[id]
	if !ok {
		return nil, nil
	}
	return r.withQuestions(t), nil
}

func (r TestRepository) GetActive(_ context.Context, courseID, studentID string) (*entity.Test, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	for _, t := range r.Store.Tests {
		if t.CourseID == courseID && t.StudentID == studentID && !t.IsSubmitted() {
			return r.withQuestions(t), nil
		}
	}
	return nil, nil
}

// withQuestions 返回深拷贝并预加载题库内容，调用方需持有锁
func (r TestRepository) withQuestions(t *entity.Test) *entity.Test {
	cp := *t
	cp.Questions = make([]*entity.TestQuestion, 0, len(t.Questions))
	for _, q := range t.Questions {
		qc := *q
		qc.Question = r.Store.Questions[q.QuestionID]
		cp.Questions = append(cp.Questions, &qc)
	}
	return &cp
}

func (r TestRepository) SaveAnswers(_ context.Context, testID string, answers map[string]string) error {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	t, ok := r.Store.Tests[testID]
	if !ok {
		return nil
	}
	for _, q := range t.Questions {
		if a, ok := answers[q.QuestionID]; ok {
			v := a
			q.StudentAnswer = &v
		}
	}
	return nil
}

func (r TestRepository) ApplyGrades(_ context.Context, testID string, grades []repository.QuestionGrade) error {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	t, ok := r.Store.Tests[testID]
	if !ok {
		return nil
	}
	for _, g := range grades {
		for _, q := range t.Questions {
			if q.QuestionID == g.QuestionID && q.AIScore == nil {
				score, feedback := g.Score, g.Feedback
				q.AIScore = &score
				q.AIFeedback = &feedback
			}
		}
	}
	return nil
}

func (r TestRepository) MarkSubmitted(_ context.Context, testID string, score int, submittedAt time.Time) (bool, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	t, ok := r.Store.Tests[testID]
	if !ok || t.IsSubmitted() {
		return false, nil
	}
	s, at := score, submittedAt
	t.AIScore = &s
	t.SubmittedAt = &at
	return true, nil
}

func (r TestRepository) ListByStudent(_ context.Context, studentID string, pagination repository.Pagination, order repository.Sort) (*repository.PagedResult[*entity.Test], error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	var out []*entity.Test
	for _, t := range r.Store.Tests {
		if t.StudentID == studentID {
			out = append(out, r.withQuestions(t))
		}
	}
	sortTests(out, order)
	return page(out, pagination), nil
}

func (r TestRepository) ListSubmittedByCourse(_ context.Context, courseID string, pagination repository.Pagination, order repository.Sort) (*repository.PagedResult[*entity.Test], error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	var out []*entity.Test
	for _, t := range r.Store.Tests {
		if t.CourseID == courseID && t.IsSubmitted() && t.AIScore != nil {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortTests(out, order)
	return page(out, pagination), nil
}

// sortTests 按排序字段稳定排序，同值按提交时间、创建时间正序
func sortTests(tests []*entity.Test, order repository.Sort) {
	key := func(t *entity.Test) float64 {
		switch order.Field {
		case "ai_score":
			if t.AIScore != nil {
				return float64(*t.AIScore)
			}
		case "submitted_at":
			if t.SubmittedAt != nil {
				return float64(t.SubmittedAt.UnixNano())
			}
		default:
			return float64(t.CreatedAt.UnixNano())
		}
		return 0
	}
	tieTime := func(t *entity.Test) time.Time {
		if t.SubmittedAt != nil {
			return *t.SubmittedAt
		}
		return t.CreatedAt
	}
	sort.SliceStable(tests, func(i, j int) bool {
		ki, kj := key(tests[i]), key(tests[j])
		if ki != kj {
			if order.Desc() {
				return ki > kj
			}
			return ki < kj
		}
		if ti, tj := tieTime(tests[i]), tieTime(tests[j]); !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return tests[i].ID < tests[j].ID
	})
}

func page[T any](all []T, pagination repository.Pagination) *repository.PagedResult[T] {
	total := int64(len(all))
	start := pagination.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + pagination.Limit()
	if end > len(all) {
		end = len(all)
	}
	return repository.NewPagedResult(all[start:end], total, pagination)
}
