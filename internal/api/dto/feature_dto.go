package dto

import "encoding/json"

type GenerateInterviewRequest struct {
	JobRole         string `json:"jobRole" binding:"required"`
	Industry        string `json:"industry"`
	ExperienceLevel string `json:"experienceLevel"`
	InterviewType   string `json:"interviewType"`
	QuestionCount   int    `json:"questionCount"`
}

type InterviewResponse struct {
	InterviewID     string          `json:"interviewId"`
	JobRole         string          `json:"jobRole"`
	Industry        string          `json:"industry,omitempty"`
	ExperienceLevel string          `json:"experienceLevel,omitempty"`
	InterviewType   string          `json:"interviewType,omitempty"`
	Questions       json.RawMessage `json:"questions"`
	CreatedAt       string          `json:"createdAt"`
}

type StartSessionRequest struct {
	InterviewID string `json:"interviewId" binding:"required"`
}

type SessionResponse struct {
	SessionID   string          `json:"sessionId"`
	InterviewID string          `json:"interviewId"`
	Status      string          `json:"status"`
	Analysis    json.RawMessage `json:"analysis,omitempty"`
	StartedAt   string          `json:"startedAt"`
	CompletedAt string          `json:"completedAt,omitempty"`
}

type InterviewAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type AnalyzeInterviewRequest struct {
	SessionID string            `json:"sessionId" binding:"required"`
	Responses []InterviewAnswer `json:"responses"`
}

type GenerateNetworkingRequest struct {
	RecipientName string `json:"recipientName" binding:"required"`
	RecipientRole string `json:"recipientRole"`
	Company       string `json:"company" binding:"required"`
	MessageType   string `json:"messageType" binding:"required"`
	Context       string `json:"context"`
}

type NetworkingResponse struct {
	MessageID   string   `json:"messageId"`
	MessageType string   `json:"messageType"`
	Subject     string   `json:"subject,omitempty"`
	Message     string   `json:"message"`
	Tips        []string `json:"tips,omitempty"`
	CreatedAt   string   `json:"createdAt"`
}

type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status,omitempty"`
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks"`
	Checked string            `json:"checkedAt"`
}
