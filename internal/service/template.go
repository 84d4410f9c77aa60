package service

import (
	"regexp"
	"strings"
	"time"

	"zapcentral/internal/models"
)

// Template placeholders, canonical uppercase. Lookups are
// case-insensitive so {nome_cliente} and {NOME_CLIENTE} both resolve.
const (
	PlaceholderCustomerName = "NOME_CLIENTE"
	PlaceholderTime         = "HORARIO"
	PlaceholderAddress      = "ENDERECO"
	PlaceholderSector       = "SETOR"
	PlaceholderSubject      = "ASSUNTO"
	PlaceholderDescription  = "DESCRICAO"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_]+)\}`)

// RenderTemplate substitutes {PLACEHOLDER} markers against the value
// table. Unknown or empty placeholders render as empty text, never as the
// literal marker.
func RenderTemplate(template string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.ToUpper(match[1 : len(match)-1])
		return values[key]
	})
}

// TemplateValues builds the value table for one reminder job. The
// scheduled time renders as HH:MM in the deployment's local timezone.
func TemplateValues(job *models.ReminderJob, loc *time.Location) map[string]string {
	return map[string]string{
		PlaceholderCustomerName: job.CustomerName,
		PlaceholderTime:         job.ScheduledAt.In(loc).Format("15:04"),
		PlaceholderAddress:      job.CustomerAddress,
		PlaceholderSector:       job.Sector,
		PlaceholderSubject:      job.Subject,
		PlaceholderDescription:  job.Description,
	}
}
