package ai

import (
	"fmt"
	"strings"
)

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func resumeAnalysisPrompt(req AnalysisRequest) string {
	return fmt.Sprintf(`You are a senior recruiter for finance roles reviewing a candidate's resume.

Target role: %s
Industry: %s
Experience level: %s

Evaluate the resume for this target. Respond with a single JSON object and nothing else:
{
  "overallScore": integer 0-100,
  "summary": "two or three sentence assessment",
  "strengths": ["..."],
  "weaknesses": ["..."],
  "sectionFeedback": [{"section": "Experience", "score": integer 0-100, "feedback": "..."}],
  "keywordAnalysis": {"present": ["..."], "missing": ["..."]},
  "recommendations": ["concrete, actionable change"]
}

RESUME:
%s
`,
		orDefault(req.JobRole, "Finance professional"),
		orDefault(req.Industry, "Financial services"),
		orDefault(req.ExperienceLevel, "Not specified"),
		req.ResumeText,
	)
}

func interviewQuestionsPrompt(req InterviewRequest) string {
	return fmt.Sprintf(`You are preparing a mock %s interview for a %s candidate applying for %s in %s.

Write exactly %d questions. Respond with a single JSON object and nothing else:
{
  "questions": [
    {"id": 1, "question": "...", "category": "technical|behavioral|market", "difficulty": "easy|medium|hard", "tips": "what a strong answer covers"}
  ]
}
`,
		orDefault(req.InterviewType, "mixed"),
		orDefault(req.ExperienceLevel, "entry-level"),
		orDefault(req.JobRole, "a finance role"),
		orDefault(req.Industry, "financial services"),
		req.QuestionCount,
	)
}

func interviewAnalysisPrompt(req InterviewAnalysisRequest) string {
	var b strings.Builder
	for i, r := range req.Responses {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n\n", i+1, r.Question, i+1, orDefault(r.Answer, "(no answer)"))
	}

	return fmt.Sprintf(`You are an interviewer for %s roles in %s grading a candidate's mock interview.

Score each answer and the interview overall. Respond with a single JSON object and nothing else:
{
  "overallScore": integer 0-100,
  "summary": "...",
  "responses": [{"question": "...", "score": integer 0-100, "feedback": "...", "improvedAnswer": "..."}],
  "strengths": ["..."],
  "improvements": ["..."]
}

TRANSCRIPT:
%s`,
		orDefault(req.JobRole, "finance"),
		orDefault(req.Industry, "financial services"),
		b.String(),
	)
}

var messageTypeGuidance = map[string]string{
	"linkedin":    "a LinkedIn connection note under 300 characters with no subject",
	"email":       "a cold email with a short subject line",
	"coffee_chat": "a request for a 15 minute coffee chat with a subject line",
	"follow_up":   "a follow-up thanking them after a conversation, with a subject line",
}

func networkingPrompt(req NetworkingRequest) string {
	return fmt.Sprintf(`Write %s from a finance job seeker to %s, %s at %s.

Context from the sender: %s

Respond with a single JSON object and nothing else:
{"subject": "...", "message": "...", "tips": ["..."]}
`,
		messageTypeGuidance[req.MessageType],
		orDefault(req.RecipientName, "the recipient"),
		orDefault(req.RecipientRole, "a professional"),
		orDefault(req.Company, "their firm"),
		orDefault(req.Context, "none"),
	)
}

// IsMessageType reports whether t is a supported networking message type.
func IsMessageType(t string) bool {
	_, ok := messageTypeGuidance[t]
	return ok
}
