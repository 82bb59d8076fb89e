// Package insights turns call transcripts into summaries and cue counts and
// records the call as contact with the lead.
package insights

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/pkg/anthropic"
)

// ErrEmptyTranscript is returned for a call without text.
var ErrEmptyTranscript = eris.New("insights: empty transcript")

const systemPrompt = `Você analisa transcrições de ligações comerciais B2B.
Responda somente com um objeto JSON com as chaves:
"summary" (resumo em até 3 frases, em português),
"sentiment" ("positive", "neutral" ou "negative"),
"next_steps" (lista de próximos passos acordados, pode ser vazia).`

// maxTranscriptChars bounds the prompt size in bytes.
const maxTranscriptChars = 60000

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Call is an inbound call transcript.
type Call struct {
	TenantID        string    `json:"-"`
	LeadID          string    `json:"lead_id"`
	CompanyID       string    `json:"company_id"`
	ExternalID      string    `json:"external_id"`
	Transcript      string    `json:"transcript"`
	DurationSeconds int       `json:"duration_seconds"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// Store persists insights.
type Store interface {
	SaveCallInsight(ctx context.Context, ci *model.CallInsight) error
	TouchLead(ctx context.Context, tenantID, id string, at time.Time) error
}

// Config tunes transcript analysis.
type Config struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

// Analyzer produces call insights.
type Analyzer struct {
	client anthropic.Client
	store  Store
	cfg    Config
	now    func() time.Time
	log    *zap.Logger
}

// New creates an Analyzer. A nil client skips the summary and keeps only
// cue counts.
func New(client anthropic.Client, st Store, cfg Config) *Analyzer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Analyzer{
		client: client,
		store:  st,
		cfg:    cfg,
		now:    time.Now,
		log:    zap.L().With(zap.String("component", "insights")),
	}
}

type summary struct {
	Summary   string   `json:"summary"`
	Sentiment string   `json:"sentiment"`
	NextSteps []string `json:"next_steps"`
}

// Analyze summarises the call, saves the insight and bumps the lead's
// last contact. A failed summary is logged and the insight is saved with
// cue counts only.
func (a *Analyzer) Analyze(ctx context.Context, call Call) (*model.CallInsight, error) {
	if strings.TrimSpace(call.Transcript) == "" {
		return nil, ErrEmptyTranscript
	}
	if call.RecordedAt.IsZero() {
		call.RecordedAt = a.now().UTC()
	}

	ci := &model.CallInsight{
		TenantID:        call.TenantID,
		LeadID:          call.LeadID,
		CompanyID:       call.CompanyID,
		ExternalID:      call.ExternalID,
		Sentiment:       "unknown",
		KeywordCounts:   CountCues(call.Transcript),
		DurationSeconds: call.DurationSeconds,
		RecordedAt:      call.RecordedAt,
	}

	if a.client != nil {
		s, err := a.summarize(ctx, call.Transcript)
		if err != nil {
			a.log.Warn("transcript summary failed", zap.String("external_id", call.ExternalID), zap.Error(err))
		} else {
			ci.Summary = s.Summary
			ci.Sentiment = normalizeSentiment(s.Sentiment)
			ci.NextSteps = s.NextSteps
		}
	}

	if err := a.store.SaveCallInsight(ctx, ci); err != nil {
		return nil, eris.Wrap(err, "insights: save")
	}
	if call.LeadID != "" {
		if err := a.store.TouchLead(ctx, call.TenantID, call.LeadID, call.RecordedAt); err != nil {
			return ci, eris.Wrap(err, "insights: touch lead")
		}
	}
	return ci, nil
}

func (a *Analyzer) summarize(ctx context.Context, transcript string) (*summary, error) {
	transcript = truncate(transcript, maxTranscriptChars)
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: systemPrompt, Cached: true}},
		Messages:    []anthropic.Message{{Role: "user", Content: transcript}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.Log(a.cfg.Model, "call_insight")

	raw, err := anthropic.ExtractJSON(resp.Text())
	if err != nil {
		return nil, err
	}
	var s summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, eris.Wrap(err, "insights: parse summary")
	}
	return &s, nil
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "positivo":
		return "positive"
	case "negative", "negativo":
		return "negative"
	case "neutral", "neutro":
		return "neutral"
	default:
		return "unknown"
	}
}
