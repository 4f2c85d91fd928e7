package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	openrouterx "github.com/carebridge-ai/virtual-triage/pkg/openrouter"
)

// Config carries the shared model settings plus per-agent overrides. The
// triage agent usually runs hotter-capacity models than the referral
// builder, so each stage can pin its own model and temperature.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.2"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	TriageModel         string  `envconfig:"TRIAGE_MODEL" split_words:"true"`
	GuidanceModel       string  `envconfig:"GUIDANCE_MODEL" split_words:"true"`
	ReferralModel       string  `envconfig:"REFERRAL_MODEL" split_words:"true"`
	TriageTemperature   float32 `envconfig:"TRIAGE_TEMPERATURE" split_words:"true" default:"-1"`
	GuidanceTemperature float32 `envconfig:"GUIDANCE_TEMPERATURE" split_words:"true" default:"-1"`
	ReferralTemperature float32 `envconfig:"REFERRAL_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the effective model config for one agent kind.
func (c Config) OpenRouterFor(kind contractx.AgentKind) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch kind {
	case contractx.AgentTriage:
		if v := strings.TrimSpace(c.TriageModel); v != "" {
			modelName = v
		}
		if c.TriageTemperature >= 0 {
			temp = c.TriageTemperature
		}
	case contractx.AgentClinicalGuidance:
		if v := strings.TrimSpace(c.GuidanceModel); v != "" {
			modelName = v
		}
		if c.GuidanceTemperature >= 0 {
			temp = c.GuidanceTemperature
		}
	case contractx.AgentReferralBuilder:
		if v := strings.TrimSpace(c.ReferralModel); v != "" {
			modelName = v
		}
		if c.ReferralTemperature >= 0 {
			temp = c.ReferralTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
