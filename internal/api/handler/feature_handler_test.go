package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/ai"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/domain"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/dto"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/model"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/config"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/filestore"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

func TestParseResume(t *testing.T) {
	files := map[string][]byte{
		"resumes/a/cv.txt": []byte("  Jane Doe\nFinancial Analyst  "),
		"resumes/b/cv.pdf": []byte("John Roe"),
	}

	tests := []struct {
		name       string
		userID     string
		internal   bool
		body       string
		fetchErr   error
		wantStatus int
		wantText   string
	}{
		{name: "owner", userID: userA, body: `{"resumeId":"` + resumeA + `"}`, wantStatus: http.StatusOK, wantText: "Jane Doe\nFinancial Analyst"},
		{name: "internal caller reads any resume", internal: true, body: `{"resumeId":"` + resumeB + `"}`, wantStatus: http.StatusOK, wantText: "John Roe"},
		{name: "not the owner", userID: userA, body: `{"resumeId":"` + resumeB + `"}`, wantStatus: http.StatusForbidden},
		{name: "no caller", body: `{"resumeId":"` + resumeA + `"}`, wantStatus: http.StatusUnauthorized},
		{name: "missing id", userID: userA, body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "file missing in storage", userID: userA, body: `{"resumeId":"` + resumeA + `"}`, fetchErr: filestore.ErrFileNotFound, wantStatus: http.StatusNotFound},
		{name: "file outside storage origin", userID: userA, body: `{"resumeId":"` + resumeA + `"}`, fetchErr: filestore.ErrForeignURL, wantStatus: http.StatusBadRequest},
		{name: "storage down", userID: userA, body: `{"resumeId":"` + resumeA + `"}`, fetchErr: errors.New("storage returned 503"), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newDeps(newMemStore())
			deps.Fetcher = &fakeFetcher{files: files, err: tt.fetchErr}
			h := NewResumeHandler(deps)

			w := request{method: http.MethodPost, target: "/api/parse-resume-pdf", body: tt.body, userID: tt.userID, internal: tt.internal}.do(h.ParseResume)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp dto.ParseResumeResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantText, resp.Text)
			assert.Equal(t, len([]rune(tt.wantText)), resp.Characters)
		})
	}
}

const questionsDoc = `{"questions":[{"id":1,"question":"Walk me through a DCF.","category":"technical","difficulty":"medium"}]}`

func TestGenerateInterview(t *testing.T) {
	store := newMemStore()
	fake := &fakeAI{interview: []byte(questionsDoc)}
	deps := newDeps(store)
	deps.AI = fake
	h := NewInterviewHandler(deps)

	w := request{method: http.MethodPost, target: "/api/interviews/generate", userID: userA,
		body: `{"jobRole":"Investment Banking Analyst","industry":"M&A","interviewType":"technical"}`}.do(h.GenerateInterview)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.InterviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.JSONEq(t, `[{"id":1,"question":"Walk me through a DCF.","category":"technical","difficulty":"medium"}]`, string(resp.Questions))
	assert.Equal(t, defaultQuestionCount, fake.lastInterview.QuestionCount)

	saved := store.interviews[resp.InterviewID]
	require.NotNil(t, saved)
	assert.Equal(t, userA, saved.UserID)
	assert.JSONEq(t, questionsDoc, string(saved.Questions))
}

func TestGenerateInterview_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		aiErr      error
		wantStatus int
		wantError  string
	}{
		{name: "missing role", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "too many questions", body: `{"jobRole":"Analyst","questionCount":16}`, wantStatus: http.StatusBadRequest, wantError: "questionCount must be between 1 and 15"},
		{name: "negative count", body: `{"jobRole":"Analyst","questionCount":-1}`, wantStatus: http.StatusBadRequest},
		{name: "provider not configured", body: `{"jobRole":"Analyst"}`, aiErr: ai.ErrNotConfigured, wantStatus: http.StatusBadGateway, wantError: "AI provider not configured"},
		{name: "schema rejection", body: `{"jobRole":"Analyst"}`, aiErr: &ai.ValidationError{Schema: ai.SchemaInterviewQuestions, Reason: "questions: minItems"}, wantStatus: http.StatusBadGateway, wantError: "AI response was not in the expected format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			deps := newDeps(store)
			deps.AI = &fakeAI{interview: []byte(questionsDoc), interviewErr: tt.aiErr}
			h := NewInterviewHandler(deps)

			w := request{method: http.MethodPost, target: "/api/interviews/generate", userID: userA, body: tt.body}.do(h.GenerateInterview)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				var resp dto.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantError, resp.Error)
			}
			assert.Empty(t, store.interviews)
		})
	}
}

func seedInterview(store *memStore, owner string) (*model.GeneratedInterview, *model.InterviewSession) {
	iv := &model.GeneratedInterview{ID: "66666666-6666-4666-8666-666666666666", UserID: owner, JobRole: "Analyst", Questions: []byte(questionsDoc)}
	sess := &model.InterviewSession{ID: "77777777-7777-4777-8777-777777777777", InterviewID: iv.ID, UserID: owner, Status: domain.SessionStatusInProgress, StartedAt: fixedNow.Add(-time.Hour)}
	store.interviews[iv.ID] = iv
	store.sessions[sess.ID] = sess
	return iv, sess
}

func TestStartSession(t *testing.T) {
	store := newMemStore()
	iv, _ := seedInterview(store, userA)
	h := NewInterviewHandler(newDeps(store))

	w := request{method: http.MethodPost, target: "/api/interviews/sessions", userID: userA, body: `{"interviewId":"` + iv.ID + `"}`}.do(h.StartSession)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.SessionStatusInProgress, resp.Status)
	assert.Equal(t, iv.ID, resp.InterviewID)
	assert.Contains(t, store.sessions, resp.SessionID)

	w = request{method: http.MethodPost, target: "/api/interviews/sessions", userID: userB, body: `{"interviewId":"` + iv.ID + `"}`}.do(h.StartSession)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeInterview(t *testing.T) {
	answers := `"responses":[{"question":"Walk me through a DCF.","answer":"Project free cash flows..."}]`

	t.Run("completes session", func(t *testing.T) {
		store := newMemStore()
		_, sess := seedInterview(store, userA)
		deps := newDeps(store)
		deps.AI = &fakeAI{analysis: []byte(`{"overallScore":72,"summary":"Good","responses":[]}`)}
		h := NewInterviewHandler(deps)

		w := request{method: http.MethodPost, target: "/api/interviews/analyze", userID: userA,
			body: `{"sessionId":"` + sess.ID + `",` + answers + `}`}.do(h.AnalyzeInterview)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp dto.SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, domain.SessionStatusCompleted, resp.Status)
		assert.JSONEq(t, `{"overallScore":72,"summary":"Good","responses":[]}`, string(resp.Analysis))
		assert.Equal(t, domain.SessionStatusCompleted, store.sessions[sess.ID].Status)
		assert.Contains(t, string(store.sessions[sess.ID].Responses), "free cash flows")
	})

	t.Run("AI failure marks session failed", func(t *testing.T) {
		store := newMemStore()
		_, sess := seedInterview(store, userA)
		deps := newDeps(store)
		deps.AI = &fakeAI{analysisErr: errors.New("AI completion failed: deadline exceeded")}
		h := NewInterviewHandler(deps)

		w := request{method: http.MethodPost, target: "/api/interviews/analyze", userID: userA,
			body: `{"sessionId":"` + sess.ID + `",` + answers + `}`}.do(h.AnalyzeInterview)
		require.Equal(t, http.StatusBadGateway, w.Code)

		got := store.sessions[sess.ID]
		assert.Equal(t, domain.SessionStatusFailed, got.Status)
		assert.Equal(t, "AI completion failed: deadline exceeded", got.ErrorMessage.String)
	})

	t.Run("client disconnect still marks session failed", func(t *testing.T) {
		store := newMemStore()
		_, sess := seedInterview(store, userA)
		deps := newDeps(store)
		deps.AI = &fakeAI{analysisErr: context.Canceled}
		h := NewInterviewHandler(deps)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		request{method: http.MethodPost, target: "/api/interviews/analyze", userID: userA, ctx: ctx,
			body: `{"sessionId":"` + sess.ID + `",` + answers + `}`}.do(h.AnalyzeInterview)

		got := store.sessions[sess.ID]
		assert.Equal(t, domain.SessionStatusFailed, got.Status)
		assert.Equal(t, context.Canceled.Error(), got.ErrorMessage.String)
	})

	t.Run("session already finished", func(t *testing.T) {
		store := newMemStore()
		_, sess := seedInterview(store, userA)
		sess.Status = domain.SessionStatusCompleted
		h := NewInterviewHandler(newDeps(store))

		w := request{method: http.MethodPost, target: "/api/interviews/analyze", userID: userA,
			body: `{"sessionId":"` + sess.ID + `",` + answers + `}`}.do(h.AnalyzeInterview)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("other user's session", func(t *testing.T) {
		store := newMemStore()
		_, sess := seedInterview(store, userB)
		h := NewInterviewHandler(newDeps(store))

		w := request{method: http.MethodPost, target: "/api/interviews/analyze", userID: userA,
			body: `{"sessionId":"` + sess.ID + `",` + answers + `}`}.do(h.AnalyzeInterview)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, domain.SessionStatusInProgress, store.sessions[sess.ID].Status)
	})

	t.Run("no answers", func(t *testing.T) {
		store := newMemStore()
		_, sess := seedInterview(store, userA)
		h := NewInterviewHandler(newDeps(store))

		w := request{method: http.MethodPost, target: "/api/interviews/analyze", userID: userA,
			body: `{"sessionId":"` + sess.ID + `","responses":[]}`}.do(h.AnalyzeInterview)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGenerateNetworkingMessage(t *testing.T) {
	store := newMemStore()
	fake := &fakeAI{networking: &ai.NetworkingMessage{Subject: "Quick question", Message: "Hi Sam, ...", Tips: []string{"Keep it short"}}}
	deps := newDeps(store)
	deps.AI = fake
	h := NewNetworkingHandler(deps)

	w := request{method: http.MethodPost, target: "/api/networking/generate", userID: userA,
		body: `{"recipientName":"Sam","company":"Evercore","messageType":"Coffee_Chat","context":"alumni"}`}.do(h.GenerateMessage)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.NetworkingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "coffee_chat", resp.MessageType)
	assert.Equal(t, "Hi Sam, ...", resp.Message)
	assert.Equal(t, "coffee_chat", fake.lastNetworking.MessageType)
	require.Len(t, store.messages, 1)
	assert.Equal(t, userA, store.messages[0].UserID)

	w = request{method: http.MethodPost, target: "/api/networking/generate", userID: userA,
		body: `{"recipientName":"Sam","company":"Evercore","messageType":"fax"}`}.do(h.GenerateMessage)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

const webhookSecret = "whsec_handler_test"

func newPayments(t *testing.T) *fakePayments {
	t.Helper()
	client := payment.NewClient(config.PaymentConfig{WebhookSecret: webhookSecret, APIBaseURL: "http://unused"}, discardLogger())
	return &fakePayments{Client: client, session: &payment.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}}
}

func signedWebhook(payload string) map[string]string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(payload), Secret: webhookSecret})
	return map[string]string{"Stripe-Signature": signed.Header}
}

func TestWebhook_GrantsAccessOnce(t *testing.T) {
	store := newMemStore()
	deps := newDeps(store)
	deps.Payments = newPayments(t)
	h := NewPaymentHandler(deps)

	payload := `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","client_reference_id":"user-a","customer":"cus_1","payment_status":"paid"}}}`

	w := request{method: http.MethodPost, target: "/api/payments/webhook", body: payload, header: signedWebhook(payload)}.do(h.Webhook)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"received":true,"status":"processed"}`, w.Body.String())
	assert.True(t, store.users[userA].HasAccess)

	w = request{method: http.MethodPost, target: "/api/payments/webhook", body: payload, header: signedWebhook(payload)}.do(h.Webhook)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true,"status":"duplicate"}`, w.Body.String())
}

func TestWebhook_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		header     map[string]string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad signature",
			payload:    `{"id":"evt_2","type":"checkout.session.completed","data":{"object":{}}}`,
			header:     map[string]string{"Stripe-Signature": "t=1,v1=deadbeef"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "other event types are acknowledged",
			payload:    `{"id":"evt_3","type":"invoice.paid","data":{"object":{}}}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"received":true,"status":"ignored"}`,
		},
		{
			name:       "unpaid checkout is ignored",
			payload:    `{"id":"evt_4","type":"checkout.session.completed","data":{"object":{"client_reference_id":"user-a","payment_status":"unpaid"}}}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"received":true,"status":"ignored"}`,
		},
		{
			name:       "unknown user",
			payload:    `{"id":"evt_5","type":"checkout.session.completed","data":{"object":{"client_reference_id":"ghost","payment_status":"paid"}}}`,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			deps := newDeps(store)
			deps.Payments = newPayments(t)
			h := NewPaymentHandler(deps)

			header := tt.header
			if header == nil {
				header = signedWebhook(tt.payload)
			}

			w := request{method: http.MethodPost, target: "/api/payments/webhook", body: tt.payload, header: header}.do(h.Webhook)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
			assert.False(t, store.users[userA].HasAccess)
		})
	}
}

func TestCreateCheckout(t *testing.T) {
	store := newMemStore()
	deps := newDeps(store)
	payments := newPayments(t)
	deps.Payments = payments
	h := NewPaymentHandler(deps)

	w := request{method: http.MethodPost, target: "/api/payments/checkout", userID: userA}.do(h.CreateCheckout)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"url":"https://checkout.example/cs_1","sessionId":"cs_1"}`, w.Body.String())

	w = request{method: http.MethodPost, target: "/api/payments/checkout", userID: userB}.do(h.CreateCheckout)
	assert.Equal(t, http.StatusBadRequest, w.Code, "user with access already")

	payments.err = payment.ErrNotConfigured
	w = request{method: http.MethodPost, target: "/api/payments/checkout", userID: userA}.do(h.CreateCheckout)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Payment provider not configured")
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	deps := newDeps(newMemStore())
	deps.ServiceName = "api-service"
	deps.HealthCheck = map[string]HealthChecker{
		"postgres": checkerFunc(func(context.Context) error { return nil }),
	}
	h := NewHealthHandler(deps)

	w := request{method: http.MethodGet, target: "/health"}.do(h.Health)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]string{"postgres": "healthy"}, resp.Checks)

	deps.HealthCheck["rabbitmq"] = checkerFunc(func(context.Context) error { return errors.New("not connected") })
	h = NewHealthHandler(deps)

	w = request{method: http.MethodGet, target: "/health"}.do(h.Health)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"rabbitmq":"unhealthy"`)
}
