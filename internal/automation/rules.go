package automation

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/olvconsultores/stratevo/internal/model"
)

// ErrInvalidRule is returned by ValidateRule.
var ErrInvalidRule = eris.New("automation: invalid rule")

var commonVars = []string{"dias", "regra", "prazo"}

// ruleVars lists the template keys each trigger provides.
var ruleVars = map[model.ReminderType][]string{
	model.ReminderFollowupInactive: {"nome", "email", "telefone", "empresa", "ultimo_contato"},
	model.ReminderProposalExpiring: {"nome", "email", "empresa", "titulo", "vencimento"},
	model.ReminderTaskOverdue:      {"nome", "titulo", "responsavel", "vencimento", "email"},
}

// templated lists the action config keys rendered as templates per action.
var templated = map[model.ActionType][]string{
	model.ActionNotification: {model.ConfigTitle, model.ConfigBody},
	model.ActionEmail:        {model.ConfigRecipient, model.ConfigSubject, model.ConfigBody},
	model.ActionTask:         {model.ConfigTitle, model.ConfigDescription, model.ConfigAssignee},
}

// ValidateRule checks a rule before it is saved. Every problem is reported.
func ValidateRule(r *model.AutomationRule) error {
	var problems []string
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	if r.TenantID == "" {
		problems = append(problems, "tenant is required")
	}
	if r.TriggerDays < 0 {
		problems = append(problems, "trigger_days must not be negative")
	}

	vars, ok := ruleVars[r.ReminderType]
	if !ok {
		problems = append(problems, "unknown reminder_type "+string(r.ReminderType))
	}
	keys, ok := templated[r.ActionType]
	if !ok {
		problems = append(problems, "unknown action_type "+string(r.ActionType))
	}

	known := map[string]bool{}
	for _, v := range append(vars, commonVars...) {
		known[v] = true
	}
	if len(vars) > 0 {
		for _, k := range keys {
			for _, p := range Placeholders(r.ActionConfig[k]) {
				if !known[strings.ToLower(p)] {
					problems = append(problems, "unknown placeholder {{"+p+"}} in "+k)
				}
			}
		}
	}
	if r.ActionType == model.ActionTask {
		if _, err := dueDaysOf(r.ActionConfig, 1); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return eris.Wrap(ErrInvalidRule, strings.Join(problems, "; "))
	}
	return nil
}
