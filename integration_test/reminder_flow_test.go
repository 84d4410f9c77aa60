package integration_test

import (
	"context"
	"testing"
	"time"

	"zapcentral/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderDeliveryEndToEnd(t *testing.T) {
	env := NewTestEnvironment(t)

	view, err := env.registry.CreateSession("11 99999-8888", "Oficina Central")
	require.NoError(t, err)
	sessionID := view.SessionID

	env.EmitState(sessionID, "isLogged")
	env.WaitForStatus(sessionID, models.SessionStatusConnected, 5*time.Second)

	scheduledAt := time.Now().UTC().Add(5 * time.Minute).Truncate(time.Second)
	id := env.SeedReminder(ReminderFixture(sessionID, scheduledAt))

	env.scheduler.RunTick(context.Background())

	sent := env.SentMessages()
	require.Len(t, sent, 2)

	wantTime := scheduledAt.Format("15:04")
	assert.Equal(t, sessionID, sent[0].Session)
	assert.Equal(t, "5511988887777@c.us", sent[0].Phone)
	assert.Equal(t, "Oi Ana Souza, sua visita esta confirmada para as "+wantTime+". Endereco: Rua das Flores, 120", sent[0].Message)

	assert.Equal(t, sessionID, sent[1].Session)
	assert.Equal(t, fixtureGroupTarget, sent[1].Phone)
	assert.Equal(t, "Visita de Ana Souza as "+wantTime+" - setor Instalacao: Troca de equipamento", sent[1].Message)

	job := env.LoadReminder(id)
	assert.NotNil(t, job.IndividualSentAt)
	assert.NotNil(t, job.GroupSentAt)

	// A second tick must not deliver anything again
	env.scheduler.RunTick(context.Background())
	assert.Len(t, env.SentMessages(), 2)
}

func TestReminderRoutedThroughAnyConnectedSession(t *testing.T) {
	env := NewTestEnvironment(t)

	view, err := env.registry.CreateSession("62 98888-0002", "Filial Goiania")
	require.NoError(t, err)
	env.EmitState(view.SessionID, "isLogged")
	env.WaitForStatus(view.SessionID, models.SessionStatusConnected, 5*time.Second)

	// No session pinned on the row: any connected session carries it
	scheduledAt := time.Now().UTC().Add(10 * time.Minute)
	env.SeedReminder(ReminderFixture("", scheduledAt))

	env.scheduler.RunTick(context.Background())

	sent := env.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, view.SessionID, sent[0].Session)
	assert.Equal(t, view.SessionID, sent[1].Session)
}

func TestCompletedReminderIsSuppressed(t *testing.T) {
	env := NewTestEnvironment(t)

	view, err := env.registry.CreateSession("11 97777-0003", "Central")
	require.NoError(t, err)
	env.EmitState(view.SessionID, "isLogged")
	env.WaitForStatus(view.SessionID, models.SessionStatusConnected, 5*time.Second)

	job := ReminderFixture(view.SessionID, time.Now().UTC().Add(15*time.Minute))
	job.Status = models.ReminderStatusDone
	id := env.SeedReminder(job)

	env.scheduler.RunTick(context.Background())

	assert.Empty(t, env.SentMessages())
	stored := env.LoadReminder(id)
	assert.NotNil(t, stored.IndividualSentAt)
	assert.NotNil(t, stored.GroupSentAt)
}
