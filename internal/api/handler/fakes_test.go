package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/ai"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/domain"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/model"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/storage"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/auth"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/payment"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/scheduler"
	"github.com/gin-gonic/gin"
)

const (
	userA   = "user-a"
	userB   = "user-b"
	resumeA = "11111111-1111-4111-8111-111111111111"
	resumeB = "22222222-2222-4222-8222-222222222222"
)

var fixedNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory Store.
type memStore struct {
	mu         sync.Mutex
	jobs       map[string]*model.AnalysisJob
	resumes    map[string]*model.Resume
	users      map[string]*model.User
	interviews map[string]*model.GeneratedInterview
	sessions   map[string]*model.InterviewSession
	messages   []model.NetworkingMessage
	events     map[string]string
	failNext   error
}

func newMemStore() *memStore {
	return &memStore{
		jobs: map[string]*model.AnalysisJob{},
		resumes: map[string]*model.Resume{
			resumeA: {ID: resumeA, UserID: userA, FileName: "cv.txt", FileURL: "resumes/a/cv.txt", FileType: "txt"},
			resumeB: {ID: resumeB, UserID: userB, FileName: "cv.pdf", FileURL: "resumes/b/cv.pdf", FileType: "pdf"},
		},
		users: map[string]*model.User{
			userA: {ID: userA, Email: "a@example.com"},
			userB: {ID: userB, Email: "b@example.com", HasAccess: true},
		},
		interviews: map[string]*model.GeneratedInterview{},
		sessions:   map[string]*model.InterviewSession{},
		events:     map[string]string{},
	}
}

func (m *memStore) takeErr() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memStore) CreateJob(_ context.Context, job *model.AnalysisJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memStore) GetJobByID(_ context.Context, jobID string) (*model.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) ListJobs(_ context.Context, f storage.JobFilter) ([]model.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}

	var out []model.AnalysisJob
	for _, j := range m.jobs {
		if f.UserID != "" && j.UserID != f.UserID {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.Cursor != nil {
			if j.CreatedAt.After(f.Cursor.CreatedAt) {
				continue
			}
			if j.CreatedAt.Equal(f.Cursor.CreatedAt) && j.ID >= f.Cursor.JobID {
				continue
			}
		}
		out = append(out, *j)
	}

	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID > out[k].ID
	})

	if f.PageSize > 0 && len(out) > f.PageSize+1 {
		out = out[:f.PageSize+1]
	}
	return out, nil
}

func (m *memStore) GetResumeByID(_ context.Context, resumeID string) (*model.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[resumeID]
	if !ok {
		return nil, domain.ErrResumeNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetUserByID(_ context.Context, userID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) CreateInterview(_ context.Context, iv *model.GeneratedInterview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *iv
	m.interviews[iv.ID] = &cp
	return nil
}

func (m *memStore) GetInterviewByID(_ context.Context, id string) (*model.GeneratedInterview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interviews[id]
	if !ok {
		return nil, domain.ErrInterviewNotFound
	}
	cp := *iv
	return &cp, nil
}

func (m *memStore) CreateSession(_ context.Context, sess *model.InterviewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sess
	m.sessions[sess.ID] = &cp
	return nil
}

func (m *memStore) GetSessionByID(_ context.Context, id string) (*model.InterviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) CompleteSession(_ context.Context, id string, responses, analysis []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != domain.SessionStatusInProgress {
		return false, nil
	}
	s.Status = domain.SessionStatusCompleted
	s.Responses = responses
	s.Analysis = analysis
	return true, nil
}

func (m *memStore) FailSession(ctx context.Context, id string, responses []byte, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != domain.SessionStatusInProgress {
		return false, nil
	}
	s.Status = domain.SessionStatusFailed
	s.Responses = responses
	s.ErrorMessage.String, s.ErrorMessage.Valid = message, true
	return true, nil
}

func (m *memStore) CreateNetworkingMessage(_ context.Context, msg *model.NetworkingMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) GrantAccess(_ context.Context, eventID, eventType, userID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.events[eventID]; seen {
		return domain.ErrDuplicateEvent
	}
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	m.events[eventID] = eventType
	u.HasAccess = true
	return nil
}

func (m *memStore) RecordPaymentEvent(_ context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.events[eventID]; seen {
		return domain.ErrDuplicateEvent
	}
	m.events[eventID] = eventType
	return nil
}

type fakeAI struct {
	interview      []byte
	interviewErr   error
	analysis       []byte
	analysisErr    error
	networking     *ai.NetworkingMessage
	networkingErr  error
	lastInterview  ai.InterviewRequest
	lastNetworking ai.NetworkingRequest
}

func (f *fakeAI) GenerateInterview(_ context.Context, req ai.InterviewRequest) (*ai.InterviewQuestions, []byte, error) {
	f.lastInterview = req
	if f.interviewErr != nil {
		return nil, nil, f.interviewErr
	}
	return &ai.InterviewQuestions{}, f.interview, nil
}

func (f *fakeAI) AnalyzeInterview(_ context.Context, _ ai.InterviewAnalysisRequest) (*ai.InterviewAnalysis, []byte, error) {
	if f.analysisErr != nil {
		return nil, nil, f.analysisErr
	}
	return &ai.InterviewAnalysis{}, f.analysis, nil
}

func (f *fakeAI) GenerateNetworkingMessage(_ context.Context, req ai.NetworkingRequest) (*ai.NetworkingMessage, error) {
	f.lastNetworking = req
	return f.networking, f.networkingErr
}

type fakeFetcher struct {
	files map[string][]byte
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.files[ref], nil
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, _, _ string, data []byte) (string, error) {
	return strings.TrimSpace(string(data)), nil
}

type fakeTrigger struct {
	mu      sync.Mutex
	results []scheduler.JobResult
	err     error
	calls   int
}

func (f *fakeTrigger) Trigger(context.Context) ([]scheduler.JobResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.results, f.err
}

func (f *fakeTrigger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePayments struct {
	*payment.Client
	session *payment.CheckoutSession
	err     error
}

func (f *fakePayments) CreateCheckoutSession(context.Context, string, string) (*payment.CheckoutSession, error) {
	return f.session, f.err
}

// request describes one call against a single handler.
type request struct {
	method   string
	target   string
	body     string
	userID   string
	internal bool
	header   map[string]string
	ctx      context.Context
}

func (r request) do(h gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	path, _, _ := strings.Cut(r.target, "?")
	engine.Handle(r.method, path, func(c *gin.Context) {
		if r.userID != "" {
			SetPrincipal(c, &auth.Principal{UserID: r.userID})
		}
		if r.internal {
			SetInternalCaller(c)
		}
		c.Next()
	}, h)

	req := httptest.NewRequest(r.method, r.target, strings.NewReader(r.body))
	if r.ctx != nil {
		req = req.WithContext(r.ctx)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func newDeps(store *memStore) *Dependencies {
	return &Dependencies{
		Logger:    discardLogger(),
		Store:     store,
		AI:        &fakeAI{},
		Fetcher:   &fakeFetcher{},
		Extractor: fakeExtractor{},
		Scheduler: &fakeTrigger{},
		Now:       func() time.Time { return fixedNow },
	}
}
