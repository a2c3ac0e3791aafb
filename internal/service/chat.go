package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"visado/internal/classifier"
	"visado/internal/domain"
	"visado/internal/metrics"
	"visado/internal/models"

	"github.com/rs/zerolog"
)

// ErrChatRateLimited is returned when a visitor sends messages faster
// than the configured budget.
var ErrChatRateLimited = errors.New("too many chat messages")

// ChatService runs the visa intake conversation. The model proposes a
// question or a decision each round; after the configured question
// budget the service forces a decision itself.
type ChatService struct {
	state      domain.StateRepository
	store      domain.Store
	gen        domain.TextGenerator
	rateLimit  int
	rateWindow time.Duration
	logger     *zerolog.Logger
}

func NewChatService(state domain.StateRepository, store domain.Store, gen domain.TextGenerator, rateLimit int, rateWindow time.Duration, logger *zerolog.Logger) *ChatService {
	if rateLimit <= 0 {
		rateLimit = 20
	}
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}
	return &ChatService{
		state:      state,
		store:      store,
		gen:        gen,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		logger:     logger,
	}
}

// HandleMessage advances one visitor conversation by one round.
func (s *ChatService) HandleMessage(ctx context.Context, sessionID, message string) (*models.ChatResult, error) {
	message = strings.TrimSpace(message)
	if sessionID == "" || message == "" {
		return nil, errors.New("session id and message are required")
	}

	allowed, err := s.state.CheckRateLimit(ctx, sessionID, s.rateLimit, s.rateWindow)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rate limit check failed, allowing message")
	} else if !allowed {
		metrics.IncChatReply("rate_limited")
		return nil, ErrChatRateLimited
	}

	session, err := s.state.GetSession(ctx, sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Session load failed, starting fresh")
		session = nil
	}
	if session == nil {
		session = &models.ChatSession{SessionID: sessionID}
	}

	cfg, err := s.store.GetAdminConfig(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Admin config unavailable, using defaults")
		cfg = &models.AdminConfig{AIContext: models.DefaultAIContext, MaxQuestions: models.DefaultMaxQuestions}
	}

	session.History = append(session.History, models.ChatMessage{Role: "user", Content: message})
	session.Questions++

	result := s.classify(ctx, cfg, session, message)

	if !result.Decided() && session.Questions >= cfg.MaxQuestions {
		result = s.forceDecision(session)
	}

	if result.Decided() {
		if err := s.state.ClearSession(ctx, sessionID); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to clear session")
		}
		metrics.IncChatReply("visa")
	} else {
		session.History = append(session.History, models.ChatMessage{Role: "assistant", Content: result.Question})
		if err := s.state.SetSession(ctx, session); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to persist session")
		}
		metrics.IncChatReply("question")
	}

	return &result, nil
}

func (s *ChatService) classify(ctx context.Context, cfg *models.AdminConfig, session *models.ChatSession, message string) models.ChatResult {
	raw, err := s.gen.Generate(ctx, s.buildPrompt(cfg, session))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Model unavailable, classifying by keywords")
		raw = ""
	}
	return classifier.ParseReply(raw, message)
}

// buildPrompt flattens the admin context and conversation into a
// single completion prompt demanding the tagged JSON answer.
func (s *ChatService) buildPrompt(cfg *models.AdminConfig, session *models.ChatSession) string {
	var b strings.Builder
	b.WriteString(cfg.AIContext)
	b.WriteString("\n\nConversación hasta ahora:\n")
	for _, msg := range session.History {
		role := "Usuario"
		if msg.Role == "assistant" {
			role = "Asistente"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
	}
	fmt.Fprintf(&b, "\nResponde SOLO con JSON. Si ya puedes decidir el tipo de visa responde {\"visa\": \"estudio|nomada|trabajo\"}. Si necesitas más información responde {\"pregunta\": \"...\"}. Llevas %d de %d preguntas.\n", session.Questions, cfg.MaxQuestions)
	return b.String()
}

// forceDecision closes a conversation that hit the question budget.
// Keyword matching over everything the visitor wrote picks the type;
// the student visa is the default when nothing matches, since it has
// the broadest intake.
func (s *ChatService) forceDecision(session *models.ChatSession) models.ChatResult {
	var userText strings.Builder
	for _, msg := range session.History {
		if msg.Role == "user" {
			userText.WriteString(msg.Content)
			userText.WriteString(" ")
		}
	}

	visa := classifier.KeywordVisa(userText.String())
	if visa == "" {
		visa = models.VisaEstudio
	}
	return models.ChatResult{Visa: visa, Fallback: true}
}
