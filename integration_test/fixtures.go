package integration_test

import (
	"time"

	"zapcentral/internal/models"
)

const (
	fixtureIndividualTemplate = "Oi {NOME_CLIENTE}, sua visita esta confirmada para as {HORARIO}. Endereco: {ENDERECO}"
	fixtureGroupTemplate      = "Visita de {NOME_CLIENTE} as {HORARIO} - setor {SETOR}: {ASSUNTO}"
	fixtureGroupTarget        = "556299999990000-1111@g.us"
)

// ReminderFixture builds an open reminder scheduled at the given time,
// routed through the given session.
func ReminderFixture(sessionID string, scheduledAt time.Time) *models.ReminderJob {
	return &models.ReminderJob{
		UserID:             1,
		Status:             models.ReminderStatusOpen,
		CustomerName:       "Ana Souza",
		CustomerPhone:      "11988887777",
		CustomerAddress:    "Rua das Flores, 120",
		Sector:             "Instalacao",
		Subject:            "Troca de equipamento",
		Description:        "Cliente pediu visita no periodo da tarde",
		ScheduledAt:        scheduledAt,
		SessionID:          sessionID,
		GroupTarget:        fixtureGroupTarget,
		IndividualTemplate: fixtureIndividualTemplate,
		GroupTemplate:      fixtureGroupTemplate,
	}
}
