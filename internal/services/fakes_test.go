package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/events"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
	"github.com/SAP-F-2025/examination-service/internal/validator"
)

// ===== GENERIC IN-MEMORY STORE =====

type memStore[T any] struct {
	mu         sync.Mutex
	rows       map[uint]*T
	next       uint
	idOf       func(*T) *uint
	dependents map[uint]map[string]int64
}

func newMemStore[T any](idOf func(*T) *uint) *memStore[T] {
	return &memStore[T]{rows: make(map[uint]*T), idOf: idOf, dependents: make(map[uint]map[string]int64)}
}

func (m *memStore[T]) Create(ctx context.Context, tx *gorm.DB, entity *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	*m.idOf(entity) = m.next
	row := *entity
	m.rows[m.next] = &row
	return nil
}

func (m *memStore[T]) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("failed to get: %w", gorm.ErrRecordNotFound)
	}
	out := *row
	return &out, nil
}

func (m *memStore[T]) Update(ctx context.Context, tx *gorm.DB, entity *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := *m.idOf(entity)
	if _, ok := m.rows[id]; !ok {
		return repositories.ErrNotFound
	}
	row := *entity
	m.rows[id] = &row
	return nil
}

func (m *memStore[T]) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore[T]) List(ctx context.Context, tx *gorm.DB, filters repositories.ListFilters) ([]*T, int64, error) {
	all := m.all()
	total := int64(len(all))
	start := filters.Offset
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if filters.Limit > 0 && start+filters.Limit < end {
		end = start + filters.Limit
	}
	return all[start:end], total, nil
}

func (m *memStore[T]) Search(ctx context.Context, tx *gorm.DB, term string, limit int) ([]*T, error) {
	return m.all(), nil
}

func (m *memStore[T]) Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok, nil
}

func (m *memStore[T]) CountDependents(ctx context.Context, tx *gorm.DB, id uint) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for k, v := range m.dependents[id] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore[T]) all() []*T {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*T, len(ids))
	for i, id := range ids {
		row := *m.rows[id]
		out[i] = &row
	}
	return out
}

func (m *memStore[T]) anyMatch(match func(*T) bool) bool {
	for _, row := range m.all() {
		if match(row) {
			return true
		}
	}
	return false
}

func excluded(id uint, excludeID *uint) bool {
	return excludeID != nil && *excludeID == id
}

// ===== ENTITY FAKES =====

type fakeDepartments struct {
	*memStore[models.Department]
}

func (f *fakeDepartments) ExistsByName(ctx context.Context, tx *gorm.DB, name string, excludeID *uint) (bool, error) {
	return f.anyMatch(func(d *models.Department) bool { return !excluded(d.ID, excludeID) && strings.EqualFold(d.Name, name) }), nil
}

func (f *fakeDepartments) ExistsByCode(ctx context.Context, tx *gorm.DB, code string, excludeID *uint) (bool, error) {
	return f.anyMatch(func(d *models.Department) bool { return !excluded(d.ID, excludeID) && strings.EqualFold(d.Code, code) }), nil
}

func (f *fakeDepartments) ListAll(ctx context.Context, tx *gorm.DB) ([]*models.Department, error) {
	return f.all(), nil
}

type fakeFacultyMembers struct {
	*memStore[models.FacultyMember]
}

func (f *fakeFacultyMembers) ExistsByEmail(ctx context.Context, tx *gorm.DB, email string, excludeID *uint) (bool, error) {
	return f.anyMatch(func(m *models.FacultyMember) bool { return !excluded(m.ID, excludeID) && strings.EqualFold(m.Email, email) }), nil
}

type fakeSubjects struct {
	*memStore[models.Subject]
}

func (f *fakeSubjects) ExistsByCode(ctx context.Context, tx *gorm.DB, code string, excludeID *uint) (bool, error) {
	return f.anyMatch(func(s *models.Subject) bool { return !excluded(s.ID, excludeID) && strings.EqualFold(s.Code, code) }), nil
}

func (f *fakeSubjects) ExistsByNameInDepartment(ctx context.Context, tx *gorm.DB, departmentID uint, name string, excludeID *uint) (bool, error) {
	return f.anyMatch(func(s *models.Subject) bool {
		return !excluded(s.ID, excludeID) && s.DepartmentID == departmentID && strings.EqualFold(s.Name, name)
	}), nil
}

func (f *fakeSubjects) ListByDepartment(ctx context.Context, tx *gorm.DB, departmentID *uint) ([]*models.Subject, error) {
	var out []*models.Subject
	for _, s := range f.all() {
		if departmentID == nil || s.DepartmentID == *departmentID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakePaperCategories struct {
	*memStore[models.PaperCategory]
}

func (f *fakePaperCategories) ExistsByName(ctx context.Context, tx *gorm.DB, name string, excludeID *uint) (bool, error) {
	return f.anyMatch(func(c *models.PaperCategory) bool { return !excluded(c.ID, excludeID) && strings.EqualFold(c.Name, name) }), nil
}

func (f *fakePaperCategories) ListAll(ctx context.Context, tx *gorm.DB) ([]*models.PaperCategory, error) {
	return f.all(), nil
}

type fakeQuestionTypes struct {
	*memStore[models.QuestionType]
}

func (f *fakeQuestionTypes) ExistsByCode(ctx context.Context, tx *gorm.DB, code string, excludeID *uint) (bool, error) {
	return f.anyMatch(func(t *models.QuestionType) bool { return !excluded(t.ID, excludeID) && t.Code == code }), nil
}

func (f *fakeQuestionTypes) ListAll(ctx context.Context, tx *gorm.DB) ([]*models.QuestionType, error) {
	return f.all(), nil
}

type fakeQuestions struct {
	*memStore[models.Question]
	repo *fakeRepo
}

func (f *fakeQuestions) GetByIDWithOptions(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	q, err := f.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return f.repo.hydrate(q), nil
}

func (f *fakeQuestions) GetByIDsWithOptions(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	var out []*models.Question
	for _, id := range ids {
		if q, err := f.GetByIDWithOptions(ctx, tx, id); err == nil {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestions) CountExisting(ctx context.Context, tx *gorm.DB, ids []uint) (int64, error) {
	var n int64
	for _, id := range uniqueIDs(ids) {
		if ok, _ := f.Exists(ctx, tx, id); ok {
			n++
		}
	}
	return n, nil
}

type fakeQuestionOptions struct {
	*memStore[models.QuestionOption]
}

func (f *fakeQuestionOptions) ListByQuestion(ctx context.Context, tx *gorm.DB, questionID uint) ([]*models.QuestionOption, error) {
	var out []*models.QuestionOption
	for _, o := range f.all() {
		if o.QuestionID == questionID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeQuestionOptions) CreateBatch(ctx context.Context, tx *gorm.DB, options []*models.QuestionOption) error {
	for _, o := range options {
		if err := f.Create(ctx, tx, o); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeQuestionOptions) ExistsByText(ctx context.Context, tx *gorm.DB, questionID uint, text string, excludeID *uint) (bool, error) {
	return f.anyMatch(func(o *models.QuestionOption) bool {
		return !excluded(o.ID, excludeID) && o.QuestionID == questionID && o.Text == text
	}), nil
}

func (f *fakeQuestionOptions) CountCorrect(ctx context.Context, tx *gorm.DB, questionID uint, excludeID *uint) (int64, error) {
	var n int64
	for _, o := range f.all() {
		if o.QuestionID == questionID && o.IsCorrect && !excluded(o.ID, excludeID) {
			n++
		}
	}
	return n, nil
}

type fakeUserCategories struct {
	*memStore[models.UserCategory]
}

func (f *fakeUserCategories) ExistsByName(ctx context.Context, tx *gorm.DB, name string, excludeID *uint) (bool, error) {
	return f.anyMatch(func(c *models.UserCategory) bool { return !excluded(c.ID, excludeID) && strings.EqualFold(c.Name, name) }), nil
}

func (f *fakeUserCategories) ListAll(ctx context.Context, tx *gorm.DB) ([]*models.UserCategory, error) {
	return f.all(), nil
}

func (f *fakeUserCategories) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.UserCategory, error) {
	var out []*models.UserCategory
	for _, id := range uniqueIDs(ids) {
		if c, err := f.GetByID(ctx, tx, id); err == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeUsers struct {
	*memStore[models.User]
}

func (f *fakeUsers) GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*models.User, error) {
	for _, u := range f.all() {
		if u.ExternalID != nil && *u.ExternalID == externalID {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) ExistsByEmail(ctx context.Context, tx *gorm.DB, email string, excludeID *uint) (bool, error) {
	return f.anyMatch(func(u *models.User) bool { return !excluded(u.ID, excludeID) && strings.EqualFold(u.Email, email) }), nil
}

func (f *fakeUsers) TouchLastLogin(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	u, err := f.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}
	u.LastLoginAt = &at
	return f.Update(ctx, tx, u)
}

// ===== PAPERS =====

type fakePapers struct {
	*memStore[models.Paper]
	repo       *fakeRepo
	links      map[uint][]models.PaperQuestion
	categories map[uint][]uint
}

func (f *fakePapers) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Paper, error) {
	p, err := f.memStore.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	p.UserCategories = nil
	for _, cid := range f.categories[id] {
		if c, err := f.repo.userCategories.GetByID(ctx, tx, cid); err == nil {
			p.UserCategories = append(p.UserCategories, *c)
		}
	}
	return p, nil
}

func (f *fakePapers) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Paper, error) {
	p, err := f.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	links := append([]models.PaperQuestion(nil), f.links[id]...)
	sort.SliceStable(links, func(i, j int) bool { return links[i].OrderIndex < links[j].OrderIndex })
	for i := range links {
		if q, err := f.repo.questions.GetByIDWithOptions(ctx, tx, links[i].QuestionID); err == nil {
			links[i].Question = q
		}
	}
	p.Questions = links
	return p, nil
}

func (f *fakePapers) AttachQuestions(ctx context.Context, tx *gorm.DB, paperID uint, questions []models.PaperQuestion) error {
	for _, q := range questions {
		replaced := false
		for i, existing := range f.links[paperID] {
			if existing.QuestionID == q.QuestionID {
				f.links[paperID][i].OrderIndex = q.OrderIndex
				replaced = true
			}
		}
		if !replaced {
			q.PaperID = paperID
			f.links[paperID] = append(f.links[paperID], q)
		}
	}
	return nil
}

func (f *fakePapers) DetachQuestion(ctx context.Context, tx *gorm.DB, paperID, questionID uint) error {
	for i, existing := range f.links[paperID] {
		if existing.QuestionID == questionID {
			f.links[paperID] = append(f.links[paperID][:i], f.links[paperID][i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *fakePapers) ReorderQuestions(ctx context.Context, tx *gorm.DB, paperID uint, questionIDs []uint) error {
	for index, qid := range questionIDs {
		for i := range f.links[paperID] {
			if f.links[paperID][i].QuestionID == qid {
				f.links[paperID][i].OrderIndex = index
			}
		}
	}
	return nil
}

func (f *fakePapers) ListQuestionIDs(ctx context.Context, tx *gorm.DB, paperID uint) ([]uint, error) {
	links := append([]models.PaperQuestion(nil), f.links[paperID]...)
	sort.SliceStable(links, func(i, j int) bool { return links[i].OrderIndex < links[j].OrderIndex })
	ids := make([]uint, len(links))
	for i, l := range links {
		ids[i] = l.QuestionID
	}
	return ids, nil
}

func (f *fakePapers) HasQuestion(ctx context.Context, tx *gorm.DB, paperID, questionID uint) (bool, error) {
	for _, l := range f.links[paperID] {
		if l.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePapers) ListPaperIDsByQuestion(ctx context.Context, tx *gorm.DB, questionID uint) ([]uint, error) {
	var ids []uint
	for _, p := range f.all() {
		for _, l := range f.links[p.ID] {
			if l.QuestionID == questionID {
				ids = append(ids, p.ID)
				break
			}
		}
	}
	return ids, nil
}

func (f *fakePapers) SumQuestionMarks(ctx context.Context, tx *gorm.DB, paperID uint) (float64, error) {
	total := 0.0
	for _, l := range f.links[paperID] {
		if q, err := f.repo.questions.GetByID(ctx, tx, l.QuestionID); err == nil {
			total += q.Marks
		}
	}
	return total, nil
}

func (f *fakePapers) NextOrderIndex(ctx context.Context, tx *gorm.DB, paperID uint) (int, error) {
	next := 1
	for _, l := range f.links[paperID] {
		if l.OrderIndex >= next {
			next = l.OrderIndex + 1
		}
	}
	return next, nil
}

func (f *fakePapers) ReplaceUserCategories(ctx context.Context, tx *gorm.DB, paper *models.Paper, categoryIDs []uint) error {
	f.categories[paper.ID] = append([]uint(nil), categoryIDs...)
	return nil
}

func (f *fakePapers) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.PaperStatus, updates map[string]interface{}) (bool, error) {
	p, err := f.memStore.GetByID(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	if at, ok := updates["published_at"].(time.Time); ok {
		p.PublishedAt = &at
	}
	return true, f.Update(ctx, tx, p)
}

func (f *fakePapers) UpdateTotalMarks(ctx context.Context, tx *gorm.DB, id uint, totalMarks float64) error {
	p, err := f.memStore.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}
	p.TotalMarks = totalMarks
	return f.Update(ctx, tx, p)
}

// ===== ATTEMPTS =====

type fakeAttempts struct {
	*memStore[models.TestAttempt]
	repo *fakeRepo
	// beforeTransition runs once ahead of the next conditional status update
	beforeTransition func(id uint)
}

func (f *fakeAttempts) Create(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error {
	if attempt.Status == models.AttemptInProgress && f.anyMatch(func(a *models.TestAttempt) bool {
		return a.UserID == attempt.UserID && a.PaperID == attempt.PaperID && a.Status == models.AttemptInProgress
	}) {
		return fmt.Errorf("failed to create attempt: %w", gorm.ErrDuplicatedKey)
	}
	return f.memStore.Create(ctx, tx, attempt)
}

func (f *fakeAttempts) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	return f.GetByID(ctx, tx, id)
}

func (f *fakeAttempts) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	a, err := f.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	answers, _ := f.repo.answers.ListByAttempt(ctx, tx, id)
	for _, answer := range answers {
		a.Answers = append(a.Answers, *answer)
	}
	return a, nil
}

func (f *fakeAttempts) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	var out []*models.TestAttempt
	for _, a := range f.all() {
		if filters.UserID != nil && a.UserID != *filters.UserID {
			continue
		}
		if filters.PaperID != nil && a.PaperID != *filters.PaperID {
			continue
		}
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (f *fakeAttempts) UpdateFields(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) error {
	a, err := f.GetByID(ctx, tx, id)
	if err != nil {
		return repositories.ErrNotFound
	}
	applyAttemptUpdates(a, updates)
	return f.Update(ctx, tx, a)
}

func (f *fakeAttempts) ListByUserAndPaper(ctx context.Context, tx *gorm.DB, userID, paperID uint) ([]*models.TestAttempt, error) {
	var out []*models.TestAttempt
	for _, a := range f.all() {
		if a.UserID == userID && a.PaperID == paperID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttempts) ListOverdue(ctx context.Context, tx *gorm.DB, now time.Time, afterID uint, limit int) ([]*models.TestAttempt, error) {
	var out []*models.TestAttempt
	for _, a := range f.all() {
		if a.ID > afterID && a.IsOverdue(now) && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttempts) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.AttemptStatus, updates map[string]interface{}) (bool, error) {
	if err := from.Transition(to); err != nil {
		return false, err
	}
	if hook := f.beforeTransition; hook != nil {
		f.beforeTransition = nil
		hook(id)
	}
	a, err := f.GetByID(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = to
	applyAttemptUpdates(a, updates)
	return true, f.Update(ctx, tx, a)
}

func applyAttemptUpdates(a *models.TestAttempt, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "start_time":
			t := value.(time.Time)
			a.StartTime = &t
		case "end_time":
			t := value.(time.Time)
			a.EndTime = &t
		case "deadline":
			t := value.(time.Time)
			a.Deadline = &t
		case "graded_at":
			t := value.(time.Time)
			a.GradedAt = &t
		case "graded_by":
			a.GradedBy = value.(*uint)
		case "score":
			a.Score = value.(float64)
		case "max_score":
			a.MaxScore = value.(float64)
		case "percentage":
			a.Percentage = value.(float64)
		case "passed":
			a.Passed = value.(bool)
		case "is_stopped":
			a.IsStopped = value.(bool)
		case "end_reason":
			reason := value.(string)
			a.EndReason = &reason
		case "stop_reason":
			reason := value.(string)
			a.StopReason = &reason
		case "ip_address":
			a.IPAddress = value.(*string)
		case "user_agent":
			a.UserAgent = value.(*string)
		case "browser_metadata":
			a.BrowserMetadata = value.(datatypes.JSON)
		}
	}
}

type fakeAnswers struct {
	mu   sync.Mutex
	rows map[uint]*models.Answer
	next uint
	repo *fakeRepo
}

func (f *fakeAnswers) Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.rows {
		if existing.TestAttemptID == answer.TestAttemptID && existing.QuestionID == answer.QuestionID {
			answer.ID = id
			row := *answer
			f.rows[id] = &row
			return nil
		}
	}
	f.next++
	answer.ID = f.next
	row := *answer
	f.rows[f.next] = &row
	return nil
}

func (f *fakeAnswers) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *row
	return &out, nil
}

func (f *fakeAnswers) ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	f.mu.Lock()
	var out []*models.Answer
	for _, row := range f.rows {
		if row.TestAttemptID == attemptID {
			answer := *row
			out = append(out, &answer)
		}
	}
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	for _, answer := range out {
		if q, err := f.repo.questions.GetByIDWithOptions(ctx, tx, answer.QuestionID); err == nil {
			answer.Question = q
		}
	}
	return out, nil
}

func (f *fakeAnswers) UpdateScores(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, answer := range answers {
		row, ok := f.rows[answer.ID]
		if !ok {
			return repositories.ErrNotFound
		}
		row.IsCorrect = answer.IsCorrect
		row.MarksObtained = answer.MarksObtained
		row.NeedsManualGrading = answer.NeedsManualGrading
		row.GradedBy = answer.GradedBy
		row.GradedAt = answer.GradedAt
		row.Feedback = answer.Feedback
	}
	return nil
}

type fakeDashboard struct {
	repo *fakeRepo
}

func (f *fakeDashboard) GetStats(ctx context.Context, tx *gorm.DB) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{
		Departments: int64(len(f.repo.departments.all())),
		Subjects:    int64(len(f.repo.subjects.all())),
		Papers:      int64(len(f.repo.papers.all())),
		Questions:   int64(len(f.repo.questions.all())),
		Users:       int64(len(f.repo.users.all())),
	}
	for _, a := range f.repo.attempts.all() {
		switch a.Status {
		case models.AttemptInProgress:
			stats.ActiveAttempts++
		case models.AttemptSubmitted:
			stats.PendingGrading++
		case models.AttemptCompleted, models.AttemptGraded:
			stats.FinishedAttempts++
		}
	}
	return stats, nil
}

// ===== REPOSITORY =====

type fakeRepo struct {
	departments    *fakeDepartments
	facultyMembers *fakeFacultyMembers
	subjects       *fakeSubjects
	paperCats      *fakePaperCategories
	papers         *fakePapers
	questionTypes  *fakeQuestionTypes
	questions      *fakeQuestions
	options        *fakeQuestionOptions
	userCategories *fakeUserCategories
	users          *fakeUsers
	attempts       *fakeAttempts
	answers        *fakeAnswers
	dashboard      *fakeDashboard
	pingErr        error
}

func newFakeRepo() *fakeRepo {
	r := &fakeRepo{
		departments:    &fakeDepartments{newMemStore(func(d *models.Department) *uint { return &d.ID })},
		facultyMembers: &fakeFacultyMembers{newMemStore(func(m *models.FacultyMember) *uint { return &m.ID })},
		subjects:       &fakeSubjects{newMemStore(func(s *models.Subject) *uint { return &s.ID })},
		paperCats:      &fakePaperCategories{newMemStore(func(c *models.PaperCategory) *uint { return &c.ID })},
		questionTypes:  &fakeQuestionTypes{newMemStore(func(t *models.QuestionType) *uint { return &t.ID })},
		options:        &fakeQuestionOptions{newMemStore(func(o *models.QuestionOption) *uint { return &o.ID })},
		userCategories: &fakeUserCategories{newMemStore(func(c *models.UserCategory) *uint { return &c.ID })},
		users:          &fakeUsers{newMemStore(func(u *models.User) *uint { return &u.ID })},
	}
	r.questions = &fakeQuestions{memStore: newMemStore(func(q *models.Question) *uint { return &q.ID }), repo: r}
	r.papers = &fakePapers{
		memStore:   newMemStore(func(p *models.Paper) *uint { return &p.ID }),
		repo:       r,
		links:      make(map[uint][]models.PaperQuestion),
		categories: make(map[uint][]uint),
	}
	r.attempts = &fakeAttempts{memStore: newMemStore(func(a *models.TestAttempt) *uint { return &a.ID }), repo: r}
	r.answers = &fakeAnswers{rows: make(map[uint]*models.Answer), repo: r}
	r.dashboard = &fakeDashboard{repo: r}
	return r
}

// hydrate attaches the question type and options the way the preloading queries do
func (r *fakeRepo) hydrate(q *models.Question) *models.Question {
	if t, err := r.questionTypes.GetByID(context.Background(), nil, q.QuestionTypeID); err == nil {
		q.QuestionType = t
	}
	options, _ := r.options.ListByQuestion(context.Background(), nil, q.ID)
	q.Options = nil
	for _, o := range options {
		q.Options = append(q.Options, *o)
	}
	return q
}

func (r *fakeRepo) Department() repositories.DepartmentRepository         { return r.departments }
func (r *fakeRepo) FacultyMember() repositories.FacultyMemberRepository   { return r.facultyMembers }
func (r *fakeRepo) Subject() repositories.SubjectRepository               { return r.subjects }
func (r *fakeRepo) PaperCategory() repositories.PaperCategoryRepository   { return r.paperCats }
func (r *fakeRepo) Paper() repositories.PaperRepository                   { return r.papers }
func (r *fakeRepo) QuestionType() repositories.QuestionTypeRepository     { return r.questionTypes }
func (r *fakeRepo) Question() repositories.QuestionRepository             { return r.questions }
func (r *fakeRepo) QuestionOption() repositories.QuestionOptionRepository { return r.options }
func (r *fakeRepo) UserCategory() repositories.UserCategoryRepository     { return r.userCategories }
func (r *fakeRepo) User() repositories.UserRepository                     { return r.users }
func (r *fakeRepo) Attempt() repositories.AttemptRepository               { return r.attempts }
func (r *fakeRepo) Answer() repositories.AnswerRepository                 { return r.answers }
func (r *fakeRepo) Dashboard() repositories.DashboardRepository           { return r.dashboard }

func (r *fakeRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *fakeRepo) Ping(ctx context.Context) error { return r.pingErr }
func (r *fakeRepo) Close() error                   { return nil }

// ===== FIXTURES =====

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	admin    = authz.Actor{UserID: 100, Role: models.RoleAdmin}
	examiner = authz.Actor{UserID: 101, Role: models.RoleExaminer}
)

type testEnv struct {
	repo      *fakeRepo
	deps      *ServiceDeps
	clock     *testClock
	publisher *events.MockEventPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newFakeRepo()
	clock := &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	publisher := events.NewMockEventPublisher(logger)
	return &testEnv{
		repo:      repo,
		clock:     clock,
		publisher: publisher,
		deps: &ServiceDeps{
			Repo:       repo,
			Logger:     logger,
			Validator:  validator.New(),
			Authorizer: authz.NewRoleAuthorizer(),
			Events:     publisher,
			Now:        clock.Now,
		},
	}
}

func (e *testEnv) mustCreate(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("fixture setup failed: %v", err)
	}
}

func (e *testEnv) questionType(t *testing.T, code string, requiresOptions bool) *models.QuestionType {
	qt := &models.QuestionType{Name: code, Code: code, RequiresOptions: requiresOptions, AutoGradable: requiresOptions}
	e.mustCreate(t, e.repo.questionTypes.Create(context.Background(), nil, qt))
	return qt
}

func (e *testEnv) subject(t *testing.T) *models.Subject {
	dept := &models.Department{Name: "Science", Code: "SCI"}
	e.mustCreate(t, e.repo.departments.Create(context.Background(), nil, dept))
	subject := &models.Subject{DepartmentID: dept.ID, Name: "Physics", Code: "PHY101"}
	e.mustCreate(t, e.repo.subjects.Create(context.Background(), nil, subject))
	return subject
}

// choiceQuestion stores a question with one correct option among two and returns the correct and wrong option ids
func (e *testEnv) choiceQuestion(t *testing.T, qt *models.QuestionType, subjectID uint, marks, negative float64) (*models.Question, uint, uint) {
	q := &models.Question{SubjectID: subjectID, QuestionTypeID: qt.ID, Text: "question", Marks: marks, NegativeMarks: negative, Status: models.QuestionActive}
	e.mustCreate(t, e.repo.questions.Create(context.Background(), nil, q))
	right := &models.QuestionOption{QuestionID: q.ID, Text: "right", IsCorrect: true, Order: 1}
	wrong := &models.QuestionOption{QuestionID: q.ID, Text: "wrong", Order: 2}
	e.mustCreate(t, e.repo.options.Create(context.Background(), nil, right))
	e.mustCreate(t, e.repo.options.Create(context.Background(), nil, wrong))
	return q, right.ID, wrong.ID
}

func (e *testEnv) textQuestion(t *testing.T, qt *models.QuestionType, subjectID uint, marks float64) *models.Question {
	q := &models.Question{SubjectID: subjectID, QuestionTypeID: qt.ID, Text: "explain", Marks: marks, Status: models.QuestionActive}
	e.mustCreate(t, e.repo.questions.Create(context.Background(), nil, q))
	return q
}

// publishedPaper stores a published paper holding questions in order
func (e *testEnv) publishedPaper(t *testing.T, subjectID uint, questions ...*models.Question) *models.Paper {
	category := &models.PaperCategory{Name: fmt.Sprintf("Midterm %d", len(e.repo.paperCats.all())+1)}
	e.mustCreate(t, e.repo.paperCats.Create(context.Background(), nil, category))

	total := 0.0
	for _, q := range questions {
		total += q.Marks
	}
	paper := &models.Paper{
		SubjectID:         subjectID,
		PaperCategoryID:   category.ID,
		Name:              "Paper",
		Duration:          30,
		TotalMarks:        total,
		PassingPercentage: 40,
		Status:            models.PaperPublished,
	}
	e.mustCreate(t, e.repo.papers.Create(context.Background(), nil, paper))
	for i, q := range questions {
		e.repo.papers.links[paper.ID] = append(e.repo.papers.links[paper.ID], models.PaperQuestion{PaperID: paper.ID, QuestionID: q.ID, OrderIndex: i + 1})
	}
	return paper
}

func (e *testEnv) candidate(t *testing.T) authz.Actor {
	user := &models.User{Name: "Candidate", Email: fmt.Sprintf("c%d@example.com", len(e.repo.users.all())+1), Role: models.RoleCandidate, Status: models.UserActive}
	e.mustCreate(t, e.repo.users.Create(context.Background(), nil, user))
	return authz.Actor{UserID: user.ID, Role: models.RoleCandidate}
}
