package types

import (
	"encoding/json"
	"time"
)

// Role is the authorization role carried by a verified principal
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleMentor  Role = "MENTOR"
	RoleAdmin   Role = "ADMIN"
)

// Message roles inside a conversation session
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Principal is the identity derived from a verified credential
// FUNCTIONAL DISCOVERY: Immutable for the lifetime of a connection or request
type Principal struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// Session is an ordered conversation between a user and the assistant
// ARCHITECTURAL DISCOVERY: Messages are an append-only log; insertion order is meaningful
// and NextSeq is the per-session monotonic id generator, independent of storage format
type Session struct {
	ID          string     `json:"id"`
	OwnerUserID string     `json:"owner_user_id"`
	Title       string     `json:"title"`
	Messages    []Message  `json:"messages"`
	NextSeq     int64      `json:"next_seq"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// IsOpen reports whether the session can still receive messages
func (s *Session) IsOpen() bool {
	return s.EndedAt == nil
}

// Message is one immutable entry of a session log
type Message struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage is the caller-supplied part of a message before the store assigns identity
type NewMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Stage is one ordered phase of the assessment
type Stage string

const (
	StageSkillsAssessment  Stage = "SKILLS_ASSESSMENT"
	StageCareerInterests   Stage = "CAREER_INTERESTS"
	StagePersonalityTraits Stage = "PERSONALITY_TRAITS"
	StageLearningStyle     Stage = "LEARNING_STYLE"
	StageCareerGoals       Stage = "CAREER_GOALS"
	StageCompleted         Stage = "COMPLETED"
)

// Answer is a single response recorded against a stage
// FUNCTIONAL DISCOVERY: Comma-separated values are treated as multiple stated items during matching
type Answer struct {
	QuestionID string    `json:"question_id"`
	Value      string    `json:"value"`
	AnsweredAt time.Time `json:"answered_at"`
}

// QuizSession is a persisted multi-stage assessment instance for one user
type QuizSession struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	CurrentStage Stage              `json:"current_stage"`
	Answers      map[Stage][]Answer `json:"answers"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	Results      *QuizResults       `json:"results,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// QuizResults holds the career matches computed when a quiz completes
type QuizResults struct {
	Matches []CareerMatch `json:"matches"`
}

// CareerMatch is the score of one career profile against the user's answers
type CareerMatch struct {
	Title    string `json:"title"`
	Industry string `json:"industry"`
	Score    int    `json:"score"`
}

// CareerProfile is read-only reference data used for scoring
type CareerProfile struct {
	Title                string   `json:"title" yaml:"title"`
	RequiredSkills       []string `json:"required_skills" yaml:"required_skills"`
	Industry             string   `json:"industry" yaml:"industry"`
	WorkStyle            string   `json:"work_style" yaml:"work_style"`
	LearningRequirements []string `json:"learning_requirements" yaml:"learning_requirements"`
}

// Inbound gateway event names
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
	EventMarkRead    = "mark-read"
)

// Outbound gateway event names
const (
	EventNewMessage     = "new-message"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
	EventMessagesRead   = "messages-read"
	EventError          = "error"
	EventQuizCompleted  = "quiz-completed"
)

// InboundEvent is the envelope a client sends over its persistent connection
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEvent is the envelope the gateway sends to clients
type OutboundEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// RoomPayload is the body of join-room, leave-room and typing events
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// SendMessagePayload is the body of send-message
type SendMessagePayload struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// MarkReadPayload is the body of mark-read
type MarkReadPayload struct {
	RoomID     string   `json:"roomId"`
	MessageIDs []string `json:"messageIds"`
}

// RelayedMessage is the new-message payload fanned out to a room
type RelayedMessage struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	SenderRole Role      `json:"senderRole"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
}

// PresenceNotice is the payload of user-joined, user-left and typing events
type PresenceNotice struct {
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadReceipt is the messages-read payload
type ReadReceipt struct {
	RoomID     string    `json:"roomId"`
	UserID     string    `json:"userId"`
	MessageIDs []string  `json:"messageIds"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorNotice is the error event payload, sent to the offending connection only
type ErrorNotice struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}
