package insights

import (
	"regexp"

	"github.com/olvconsultores/stratevo/internal/qualify"
)

// cues match against folded text (lowercase, no diacritics).
var cues = map[string]*regexp.Regexp{
	"objection":  regexp.MustCompile(`\b(caro|cara|muito alto|sem interesse|nao tenho interesse|nao e prioridade|too expensive|not interested)\b`),
	"competitor": regexp.MustCompile(`\b(concorrente|concorrentes|concorrencia|outro fornecedor|competitor)\b`),
	"budget":     regexp.MustCompile(`\b(orcamento|verba|investimento|budget)\b`),
	"urgency":    regexp.MustCompile(`\b(urgente|urgencia|imediato|esta semana|ainda este mes|asap)\b`),
	"next_step":  regexp.MustCompile(`\b(proposta|reuniao|demonstracao|demo|retorno|follow up)\b`),
}

// CountCues counts occurrences of each cue category in a transcript.
// Categories with no match are omitted.
func CountCues(transcript string) map[string]int {
	text := qualify.Fold(transcript)
	out := map[string]int{}
	for name, re := range cues {
		if n := len(re.FindAllStringIndex(text, -1)); n > 0 {
			out[name] = n
		}
	}
	return out
}
