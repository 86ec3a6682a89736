package ai

type SectionFeedback struct {
	Section  string `json:"section"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

type KeywordAnalysis struct {
	Present []string `json:"present,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// ResumeAnalysis is the stored result of a completed analysis job.
type ResumeAnalysis struct {
	OverallScore    int               `json:"overallScore"`
	Summary         string            `json:"summary"`
	Strengths       []string          `json:"strengths"`
	Weaknesses      []string          `json:"weaknesses"`
	SectionFeedback []SectionFeedback `json:"sectionFeedback,omitempty"`
	KeywordAnalysis *KeywordAnalysis  `json:"keywordAnalysis,omitempty"`
	Recommendations []string          `json:"recommendations"`
}

type InterviewQuestion struct {
	ID         int    `json:"id"`
	Question   string `json:"question"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty,omitempty"`
	Tips       string `json:"tips,omitempty"`
}

type InterviewQuestions struct {
	Questions []InterviewQuestion `json:"questions"`
}

type ResponseFeedback struct {
	Question       string `json:"question"`
	Score          int    `json:"score"`
	Feedback       string `json:"feedback"`
	ImprovedAnswer string `json:"improvedAnswer,omitempty"`
}

type InterviewAnalysis struct {
	OverallScore int                `json:"overallScore"`
	Summary      string             `json:"summary"`
	Responses    []ResponseFeedback `json:"responses"`
	Strengths    []string           `json:"strengths,omitempty"`
	Improvements []string           `json:"improvements,omitempty"`
}

type NetworkingMessage struct {
	Subject string   `json:"subject,omitempty"`
	Message string   `json:"message"`
	Tips    []string `json:"tips,omitempty"`
}

// AnalysisRequest parameterizes the resume analysis prompt.
type AnalysisRequest struct {
	ResumeText      string
	JobRole         string
	Industry        string
	ExperienceLevel string
}

type InterviewRequest struct {
	JobRole         string
	Industry        string
	ExperienceLevel string
	InterviewType   string
	QuestionCount   int
}

type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type InterviewAnalysisRequest struct {
	JobRole   string
	Industry  string
	Responses []Answer
}

type NetworkingRequest struct {
	RecipientName string
	RecipientRole string
	Company       string
	MessageType   string
	Context       string
}
