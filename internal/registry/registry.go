// Package registry maps logical model identifiers to their ordered provider
// tier lists. The registry is built once at startup from configuration and is
// immutable afterwards, which makes it safe for concurrent reads with no
// locking.
package registry

import (
	"fmt"
	"sort"

	"github.com/davidbz/hearth/internal/config"
	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/provider/hosted"
	"github.com/davidbz/hearth/internal/provider/openaicompat"
)

const fallbackDefaultModel = "deepseek"

// ModelRegistry implements the domain.TierResolver interface.
type ModelRegistry struct {
	tiers        map[string][]domain.TierAdapter
	defaultModel string
}

// NewModelRegistry constructs the registry and one adapter per configured
// tier. Tier order per family is fixed: official endpoint, aggregator,
// hosted inference. The hosted tier, when configured, is always last so the
// keyless-fallback rule keeps it reachable.
func NewModelRegistry(cfg *config.ProviderConfig) *ModelRegistry {
	families := []struct {
		name        string
		official    config.EndpointConfig
		aggModel    string
		hostedModel string
	}{
		{"deepseek", cfg.DeepSeek, cfg.Aggregator.Models.DeepSeek, cfg.Hosted.Models.DeepSeek},
		{"openai", cfg.OpenAI, cfg.Aggregator.Models.OpenAI, cfg.Hosted.Models.OpenAI},
		{"grok", cfg.Grok, cfg.Aggregator.Models.Grok, cfg.Hosted.Models.Grok},
		{"gemini", cfg.Gemini, cfg.Aggregator.Models.Gemini, cfg.Hosted.Models.Gemini},
		{"claude", cfg.Claude, cfg.Aggregator.Models.Claude, cfg.Hosted.Models.Claude},
	}

	tiers := make(map[string][]domain.TierAdapter, len(families))
	for _, family := range families {
		list := make([]domain.TierAdapter, 0, 3)

		officialTier := domain.Tier{
			Priority: 1,
			Name:     fmt.Sprintf("%s/official", family.name),
			BaseURL:  family.official.BaseURL,
			APIKey:   family.official.APIKey,
			Model:    family.official.Model,
		}
		list = append(list, domain.TierAdapter{
			Tier: officialTier,
			Adapter: openaicompat.New(officialTier.Name, openaicompat.Config{
				BaseURL: officialTier.BaseURL,
				APIKey:  officialTier.APIKey,
				Model:   officialTier.Model,
				Timeout: cfg.Timeout,
			}),
		})

		if cfg.Aggregator.BaseURL != "" && family.aggModel != "" {
			aggTier := domain.Tier{
				Priority: 2,
				Name:     fmt.Sprintf("%s/aggregator", family.name),
				BaseURL:  cfg.Aggregator.BaseURL,
				APIKey:   cfg.Aggregator.APIKey,
				Model:    family.aggModel,
			}
			list = append(list, domain.TierAdapter{
				Tier: aggTier,
				Adapter: openaicompat.New(aggTier.Name, openaicompat.Config{
					BaseURL: aggTier.BaseURL,
					APIKey:  aggTier.APIKey,
					Model:   aggTier.Model,
					Timeout: cfg.Timeout,
				}),
			})
		}

		if cfg.Hosted.BaseURL != "" && family.hostedModel != "" {
			hostedTier := domain.Tier{
				Priority: len(list) + 1,
				Name:     fmt.Sprintf("%s/hosted", family.name),
				BaseURL:  cfg.Hosted.BaseURL,
				APIKey:   cfg.Hosted.APIKey,
				Model:    family.hostedModel,
			}
			list = append(list, domain.TierAdapter{
				Tier: hostedTier,
				Adapter: hosted.New(hostedTier.Name, hosted.Config{
					BaseURL: hostedTier.BaseURL,
					APIKey:  hostedTier.APIKey,
					Model:   hostedTier.Model,
					Timeout: cfg.Timeout,
				}),
			})
		}

		tiers[family.name] = list
	}

	defaultModel := cfg.DefaultModel
	if _, exists := tiers[defaultModel]; !exists {
		defaultModel = fallbackDefaultModel
	}

	return &ModelRegistry{
		tiers:        tiers,
		defaultModel: defaultModel,
	}
}

// Resolve returns the ordered tier list for a logical model. Unknown
// identifiers resolve to the default family's list; the result is never
// empty. Callers must treat the returned slice as read-only.
func (r *ModelRegistry) Resolve(logicalModel string) []domain.TierAdapter {
	if list, exists := r.tiers[logicalModel]; exists {
		return list
	}
	return r.tiers[r.defaultModel]
}

// Families returns the known logical model identifiers, sorted.
func (r *ModelRegistry) Families() []string {
	names := make([]string, 0, len(r.tiers))
	for name := range r.tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultModel returns the family unknown identifiers resolve to.
func (r *ModelRegistry) DefaultModel() string {
	return r.defaultModel
}
