// Package main boots the companion engine and wires application dependencies.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/adk/model"

	"github.com/easeaico/companion-engine/internal/config"
	"github.com/easeaico/companion-engine/internal/decision"
	"github.com/easeaico/companion-engine/internal/emotion"
	"github.com/easeaico/companion-engine/internal/fact"
	"github.com/easeaico/companion-engine/internal/genservice"
	"github.com/easeaico/companion-engine/internal/intimacy"
	"github.com/easeaico/companion-engine/internal/memory"
	"github.com/easeaico/companion-engine/internal/orchestrator"
	"github.com/easeaico/companion-engine/internal/perception"
	"github.com/easeaico/companion-engine/internal/personality"
	"github.com/easeaico/companion-engine/internal/prompt"
	"github.com/easeaico/companion-engine/internal/repository"
	"github.com/easeaico/companion-engine/internal/types"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	tuning := config.LoadTuning(cfg.TuningFile)
	triggers := config.LoadTriggers(cfg.TriggersFile)
	templates := config.LoadTemplates(cfg.TemplatesFile)
	slog.Info("configuration loaded", "llm_model", cfg.LLMModel, "embedding_model", cfg.EmbeddingModel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	llm, err := buildModel(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize generation backend: %v", err)
	}
	gen := genservice.NewClient(llm, time.Duration(cfg.RequestTimeout)*time.Second)

	var embedder memory.Embedder
	if cfg.GoogleAPIKey != "" {
		genaiEmbedder, err := memory.NewGenAIEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel)
		if err != nil {
			slog.Warn("embedder unavailable, semantic search disabled", "error", err)
		} else {
			embedder = genaiEmbedder
		}
	}

	now := time.Now()
	profile := types.Profile{
		Name:    "小满",
		Persona: "温柔、好奇，偶尔有点小脾气，喜欢记住对方生活里的小事。",
	}

	memories := memory.NewManager(ctx, store.Memories, embedder, tuning.Memory, cfg.WorkingSetSize, cfg.MemoryCapacity)
	facts := fact.NewStore(store.Facts, gen, tuning.Fact)

	orch := orchestrator.New(orchestrator.Deps{
		Profile:   profile,
		Perceiver: perception.NewAnalyzer(gen),
		Decider:   decision.NewEngine(gen),
		Gen:       gen,
		Emotion:   emotion.NewEngine(tuning.Emotion, now),
		Intimacy:  intimacy.NewEngine(tuning.Intimacy, now),
		Personality: personality.NewEngine(personality.Traits{
			Openness:          0.7,
			Conscientiousness: 0.6,
			Extraversion:      0.5,
			Agreeableness:     0.8,
			Neuroticism:       0.4,
			Plasticity:        0.5,
		}, tuning.Personality),
		Memory:       memories,
		Facts:        facts,
		Messages:     store.Messages,
		States:       store.StateKV,
		Prompt:       prompt.NewBuilder(templates["system"], 0),
		Triggers:     triggers,
		HistoryLimit: cfg.HistoryLimit,
	})

	orch.RestoreState(ctx)
	orch.Start(ctx)

	slog.Info("companion engine started", "companion", profile.Name)
	runREPL(ctx, orch, profile.Name)

	fmt.Println("\n再见。")
}

// buildModel selects the generation backend: Grok when an xAI key is set,
// otherwise Gemini.
func buildModel(ctx context.Context, cfg config.Config) (model.LLM, error) {
	if cfg.XAIAPIKey != "" {
		return genservice.NewGrokModel(cfg.LLMModel, cfg.XAIAPIKey)
	}
	if cfg.GoogleAPIKey != "" {
		return genservice.NewGeminiModel(ctx, cfg.LLMModel, cfg.GoogleAPIKey)
	}
	return nil, fmt.Errorf("set XAI_API_KEY or GOOGLE_API_KEY")
}

// runREPL reads user lines from stdin and prints paced replies, delivering
// any queued proactive message before each prompt.
func runREPL(ctx context.Context, orch *orchestrator.Orchestrator, name string) {
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		if msg, ok := orch.DequeueProactive(); ok {
			fmt.Printf("%s: %s\n", name, msg.Content)
		}
		fmt.Print("> ")

		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			for _, msg := range orch.ProcessUserMessage(ctx, line) {
				time.Sleep(msg.Delay)
				fmt.Printf("%s: %s\n", name, msg.Content)
			}
		}
	}
}
