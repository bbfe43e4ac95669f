package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"

	"github.com/wolfman30/incident-response-ai/cmd/mainconfig"
	"github.com/wolfman30/incident-response-ai/internal/app/bootstrap"
	appconfig "github.com/wolfman30/incident-response-ai/internal/config"
	"github.com/wolfman30/incident-response-ai/internal/incident"
	"github.com/wolfman30/incident-response-ai/internal/llm"
	"github.com/wolfman30/incident-response-ai/internal/policies"
	"github.com/wolfman30/incident-response-ai/pkg/logging"
)

const sampleTranscript = `Carer: I found Margaret Smith on the floor of her bedroom at about 7:45 this morning.
She said she slipped getting out of bed and could not reach her call bell.
This is the third time she has fallen this week. She has a small bruise on her left arm.
I helped her up without the hoist because I was on my own.`

func main() {
	transcriptPath := flag.String("transcript", "", "path to a transcript file (defaults to a built-in sample)")
	only := flag.String("provider", "", "test a single provider (openai, claude, gemini, bedrock)")
	verbose := flag.Bool("v", false, "print the full analysis JSON")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	transcript := sampleTranscript
	if *transcriptPath != "" {
		data, err := os.ReadFile(*transcriptPath)
		if err != nil {
			log.Fatalf("read transcript: %v", err)
		}
		transcript = string(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	factory := &llm.DefaultFactory{AnthropicBaseURL: cfg.ClaudeBaseURL}
	if awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg); err == nil {
		factory.Bedrock = func(_ context.Context, region string) (llm.BedrockConverseAPI, error) {
			c := awsCfg.Copy()
			c.Region = region
			return bedrockruntime.NewFromConfig(c), nil
		}
	}

	registry := bootstrap.BuildRegistry(cfg, logger)
	adapter := llm.NewAdapter(factory, llm.AdapterOptions{Timeout: cfg.LLMTimeout, Logger: logger})
	defer adapter.Close()
	orchestrator := incident.NewOrchestrator(adapter, policies.NewStore(cfg.PoliciesPath, logger), logger)

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Incident Analysis Provider Test")
	fmt.Println(strings.Repeat("=", 60))

	available := registry.ListAvailable()
	failed := 0
	for i, id := range llm.KnownProviders {
		if *only != "" && !strings.EqualFold(*only, string(id)) {
			continue
		}
		fmt.Printf("\n[%d] %s\n", i+1, id)
		if !available[id] {
			fmt.Println("    skipped (not configured)")
			continue
		}
		providerCfg, err := registry.Get(id)
		if err != nil {
			fmt.Printf("    ❌ %v\n", err)
			failed++
			continue
		}

		start := time.Now()
		analysis, tr := orchestrator.Analyze(ctx, providerCfg, transcript)
		elapsed := time.Since(start).Round(time.Millisecond)
		if tr.FallbackUsed {
			fmt.Printf("    ❌ fell back after %d attempts (%v): %v\n", tr.Attempts, elapsed, tr.Err)
			failed++
			continue
		}

		fmt.Printf("    ✅ %s in %v, %d attempt(s)\n", providerCfg.Model, elapsed, tr.Attempts)
		fmt.Printf("    Summary: %s\n", analysis.Summary)
		for _, v := range analysis.Violations {
			fmt.Printf("    - [%s] %s: %s\n", v.Severity, v.PolicySection, v.ViolationType)
		}
		if *verbose {
			raw, _ := json.MarshalIndent(analysis, "    ", "  ")
			fmt.Printf("    %s\n", raw)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	if failed > 0 {
		fmt.Printf("%d provider(s) failed\n", failed)
		os.Exit(1)
	}
	fmt.Println("All configured providers returned a valid analysis")
}
