package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carebridge-ai/virtual-triage/agent/agents/clinician"
	"github.com/carebridge-ai/virtual-triage/agent/agents/orchestrator"
	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	llmx "github.com/carebridge-ai/virtual-triage/agent/llm"
	"github.com/carebridge-ai/virtual-triage/agent/physician"
	referralx "github.com/carebridge-ai/virtual-triage/agent/referral"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
	configx "github.com/carebridge-ai/virtual-triage/pkg/config"
	_ "github.com/carebridge-ai/virtual-triage/pkg/logger/autoload"
	openrouterx "github.com/carebridge-ai/virtual-triage/pkg/openrouter"
	qstashx "github.com/carebridge-ai/virtual-triage/pkg/qstash"
	speechx "github.com/carebridge-ai/virtual-triage/pkg/speech"
	"github.com/carebridge-ai/virtual-triage/server"
)

type AppConfig struct {
	UseMemoryStore bool `envconfig:"USE_MEMORY_STORE" default:"false"`
	EnableArchive  bool `envconfig:"ENABLE_ARCHIVE" default:"false"`
	EnableNotifier bool `envconfig:"ENABLE_NOTIFIER" default:"false"`
	EnableSpeech   bool `envconfig:"ENABLE_SPEECH" default:"false"`

	SessionSweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"10m"`
}

func main() {
	ctx := context.Background()
	appCfg := configx.MustNew[AppConfig]("TRIAGE")

	var store statex.Store
	if appCfg.UseMemoryStore {
		mem := statex.NewMemoryStore()
		go sweepSessions(mem, appCfg.SessionSweepInterval)
		store = mem
		log.Info().Msg("using in-memory session store")
	} else {
		redisCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		upstash, err := statex.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize session store")
		}
		store = upstash
	}

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	gateway, err := clinician.NewGateway(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize agent gateway")
	}

	directory, err := physician.NewDirectory()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load physician directory")
	}
	log.Info().Int("physicians", directory.Len()).Msg("physician directory loaded")

	orchCfg := orchestrator.Config{}

	if appCfg.EnableArchive {
		archiveCfg := configx.MustNew[referralx.ArchiveConfig]("ARCHIVE")
		archive, err := referralx.NewArchive(*archiveCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize referral archive")
		}
		if err := archive.Init(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare referral archive")
		}
		defer archive.Close()
		orchCfg.Archiver = archive
	}

	if appCfg.EnableNotifier {
		qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
		notifierCfg := configx.MustNew[referralx.NotifierConfig]("NOTIFIER")
		notifier, err := referralx.NewNotifier(qstashx.MustNew(*qstashCfg), *notifierCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize referral notifier")
		}
		orchCfg.Notifier = notifier
	}

	orch, err := orchestrator.New(store, gateway, directory, orchCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize orchestrator")
	}

	var synthesizer *speechx.Synthesizer
	if appCfg.EnableSpeech {
		speechCfg := configx.MustNew[speechx.Config]("SPEECH")
		client := openrouterx.NewClient(llmCfg.OpenRouterFor(contractx.AgentTriage))
		synthesizer, err = speechx.NewSynthesizer(client, *speechCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize speech synthesizer")
		}
	}

	serverCfg := configx.MustNew[server.Config]("SERVER")
	srv := server.New(orch, synthesizer, *serverCfg)

	log.Info().Int("port", serverCfg.Port).Msg("virtual triage server starting")
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// sweepSessions periodically evicts expired sessions from the in-memory
// store. The Upstash store expires keys server-side and needs no sweep.
func sweepSessions(store *statex.MemoryStore, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if dropped := store.CleanupExpired(); dropped > 0 {
			log.Debug().Int("dropped", dropped).Msg("expired sessions swept")
		}
	}
}
