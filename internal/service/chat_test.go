package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"visado/internal/models"
	"visado/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatService(t *testing.T, gen *fakeGenerator) (*ChatService, *repository.MemoryStateRepository) {
	t.Helper()
	db := newTestStore(t)
	state := repository.NewMemoryStateRepository(time.Hour)
	logger := zerolog.Nop()
	return NewChatService(state, db, gen, 10, time.Minute, &logger), state
}

func TestHandleMessageAsksQuestion(t *testing.T) {
	gen := &fakeGenerator{reply: `{"pregunta": "¿Tienes una oferta de trabajo?"}`}
	svc, state := newChatService(t, gen)
	ctx := context.Background()

	result, err := svc.HandleMessage(ctx, "s1", "quiero irme a España")
	require.NoError(t, err)
	assert.False(t, result.Decided())
	assert.Equal(t, "¿Tienes una oferta de trabajo?", result.Question)

	session, err := state.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, 1, session.Questions)
	require.Len(t, session.History, 2)
	assert.Equal(t, "user", session.History[0].Role)
	assert.Equal(t, "assistant", session.History[1].Role)

	// The prompt carries the admin context and the conversation.
	assert.Contains(t, gen.last, "asesoría de visas")
	assert.Contains(t, gen.last, "quiero irme a España")
}

func TestHandleMessageDecides(t *testing.T) {
	gen := &fakeGenerator{reply: `{"visa": "nomada"}`}
	svc, state := newChatService(t, gen)
	ctx := context.Background()

	result, err := svc.HandleMessage(ctx, "s2", "trabajo en remoto")
	require.NoError(t, err)
	assert.Equal(t, models.VisaNomada, result.Visa)
	assert.False(t, result.Fallback)

	session, err := state.GetSession(ctx, "s2")
	require.NoError(t, err)
	assert.Nil(t, session, "decided session must be cleared")
}

func TestHandleMessageModelDownFallsBack(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	svc, _ := newChatService(t, gen)

	result, err := svc.HandleMessage(context.Background(), "s3", "quiero estudiar un máster en Madrid")
	require.NoError(t, err)
	assert.Equal(t, models.VisaEstudio, result.Visa)
	assert.True(t, result.Fallback)
}

func TestHandleMessageQuestionBudget(t *testing.T) {
	gen := &fakeGenerator{reply: `{"pregunta": "¿Algo más?"}`}
	svc, _ := newChatService(t, gen)
	ctx := context.Background()

	var result *models.ChatResult
	var err error
	for i := 0; i < models.DefaultMaxQuestions; i++ {
		result, err = svc.HandleMessage(ctx, "s4", "tengo un contrato con una empresa española")
		require.NoError(t, err)
	}

	assert.True(t, result.Decided(), "budget exhausted, a decision is forced")
	assert.Equal(t, models.VisaTrabajo, result.Visa)
	assert.True(t, result.Fallback)
}

func TestHandleMessageBudgetDefaultsToEstudio(t *testing.T) {
	gen := &fakeGenerator{reply: "respuesta inservible"}
	svc, _ := newChatService(t, gen)
	ctx := context.Background()

	var result *models.ChatResult
	var err error
	for i := 0; i < models.DefaultMaxQuestions; i++ {
		result, err = svc.HandleMessage(ctx, "s5", "hola")
		require.NoError(t, err)
	}

	assert.Equal(t, models.VisaEstudio, result.Visa)
	assert.True(t, result.Fallback)
}

func TestHandleMessageRateLimited(t *testing.T) {
	gen := &fakeGenerator{reply: `{"pregunta": "¿?"}`}
	db := newTestStore(t)
	state := repository.NewMemoryStateRepository(time.Hour)
	logger := zerolog.Nop()
	svc := NewChatService(state, db, gen, 2, time.Minute, &logger)
	ctx := context.Background()

	_, err := svc.HandleMessage(ctx, "s6", "hola")
	require.NoError(t, err)
	_, err = svc.HandleMessage(ctx, "s6", "hola")
	require.NoError(t, err)
	_, err = svc.HandleMessage(ctx, "s6", "hola")
	assert.ErrorIs(t, err, ErrChatRateLimited)
}

func TestHandleMessageValidation(t *testing.T) {
	gen := &fakeGenerator{}
	svc, _ := newChatService(t, gen)

	_, err := svc.HandleMessage(context.Background(), "", "hola")
	assert.Error(t, err)
	_, err = svc.HandleMessage(context.Background(), "s7", "   ")
	assert.Error(t, err)
}

func TestHandleMessageUsesAdminBudget(t *testing.T) {
	gen := &fakeGenerator{reply: `{"pregunta": "¿?"}`}
	db := newTestStore(t)
	state := repository.NewMemoryStateRepository(time.Hour)
	logger := zerolog.Nop()
	svc := NewChatService(state, db, gen, 10, time.Minute, &logger)
	ctx := context.Background()

	_, err := db.GetAdminConfig(ctx)
	require.NoError(t, err)
	require.NoError(t, db.SaveAdminConfig(ctx, &models.AdminConfig{AIContext: "ctx", MaxQuestions: 1}))

	result, err := svc.HandleMessage(ctx, "s8", "quiero un empleo en Barcelona")
	require.NoError(t, err)
	assert.True(t, result.Decided(), "budget of one forces immediate decision")
	assert.Equal(t, models.VisaTrabajo, result.Visa)
}
