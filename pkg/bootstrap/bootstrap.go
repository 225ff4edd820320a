// Package bootstrap builds the provider and agent registries shared by
// the API, scheduler, and worker binaries from process configuration.
// Agents and providers are registered explicitly here — there is no
// reflection-based or decorator-driven discovery.
package bootstrap

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"

	config "skeenode/configs"
	"skeenode/pkg/agent"
	"skeenode/pkg/logstore"
	"skeenode/pkg/observability"
	"skeenode/pkg/provider"
)

// Providers registers every configured LLM provider backend.
func Providers(cfg *config.Config) *provider.Registry {
	reg := provider.NewRegistry()

	if cfg.OpenAIAPIKey != "" {
		reg.Register(provider.NewOpenAIProvider(cfg.OpenAIAPIKey))
	}
	if cfg.AnthropicAPIKey != "" {
		reg.Register(provider.NewAnthropicProvider(cfg.AnthropicAPIKey))
	}
	if cfg.GoogleAPIKey != "" {
		reg.Register(provider.NewGoogleProvider(cfg.GoogleAPIKey))
	}
	if cfg.DeepseekAPIKey != "" {
		reg.Register(provider.NewDeepseekProvider(cfg.DeepseekAPIKey))
	}
	if cfg.LlamaBaseURL != "" {
		reg.Register(provider.NewLlamaProvider(cfg.LlamaBaseURL, ""))
	}

	reg.SetDefault(cfg.DefaultProvider)

	return reg
}

// LogStore builds the configured job-output archive backend.
func LogStore(cfg *config.Config) (logstore.Store, error) {
	switch cfg.LogStoreBackend {
	case "s3":
		return logstore.NewS3Store(logstore.S3Config{
			Bucket:          cfg.LogStoreBucket,
			Prefix:          cfg.LogStorePrefix,
			Region:          cfg.LogStoreRegion,
			Endpoint:        cfg.LogStoreEndpoint,
			AccessKeyID:     cfg.LogStoreAccessKeyID,
			SecretAccessKey: cfg.LogStoreSecretKey,
			LocalCacheDir:   cfg.LogStoreLocalDir,
		})
	case "local", "":
		return logstore.NewLocalStore(cfg.LogStoreLocalDir)
	default:
		return nil, fmt.Errorf("bootstrap: unknown log store backend %q", cfg.LogStoreBackend)
	}
}

// Tracing builds the OpenTelemetry trace provider for a process, exporting
// to OTLP over HTTP when OTLP_ENDPOINT is set and leaving tracing as a
// no-op tracer otherwise.
func Tracing(ctx context.Context, cfg *config.Config, serviceName string) (*tracing.Provider, error) {
	tracingCfg := tracing.DefaultConfig(serviceName)
	tracingCfg.Enabled = cfg.OTLPEndpoint != ""
	if tracingCfg.Enabled {
		tracingCfg.Endpoint = cfg.OTLPEndpoint
	}
	return tracing.Init(ctx, tracingCfg)
}

// WorkerCapacity returns cfg.MaxConcurrentJobs when it is positive
// (LoadConfig defaults MAX_CONCURRENT_JOBS to 5). Only when it is 0 or
// less does it size the node itself: one slot per CPU, halved if the
// node is memory-constrained (less than 512MB per CPU), with a floor
// of 1.
func WorkerCapacity(cfg *config.Config) int {
	if cfg.MaxConcurrentJobs > 0 {
		return cfg.MaxConcurrentJobs
	}

	cpus := runtime.NumCPU()
	capacity := cpus

	if v, err := mem.VirtualMemory(); err == nil {
		memPerCPU := v.Total / 1024 / 1024 / uint64(cpus)
		if memPerCPU < 512 {
			capacity = cpus / 2
		}
	}
	if capacity < 1 {
		capacity = 1
	}
	return capacity
}

// Agents registers every agent the platform ships with.
func Agents(cfg *config.Config, providers *provider.Registry) *agent.Registry {
	reg := agent.NewRegistry()
	reg.Register(agent.NewPromptAgent("simple_prompt", providers, cfg.DefaultProvider))
	reg.Register(agent.NewSummarizationAgent("summarization", providers, cfg.DefaultProvider))
	reg.Register(agent.NewTextProcessingAgent("text_processing", providers, cfg.DefaultProvider))
	return reg
}
