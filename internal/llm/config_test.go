package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigFor(t *testing.T) {
	tests := []struct {
		provider Provider
		want     Provider
		lite     string
		standard string
	}{
		{"", ProviderGemini, "gemini-2.5-flash-lite", "gemini-2.5-flash"},
		{ProviderGemini, ProviderGemini, "gemini-2.5-flash-lite", "gemini-2.5-flash"},
		{ProviderOpenAI, ProviderOpenAI, "gpt-4o-mini", "gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(string(tt.want)+"/"+string(tt.provider), func(t *testing.T) {
			cfg := DefaultConfigFor(tt.provider)
			assert.Equal(t, tt.want, cfg.Provider)
			assert.Equal(t, tt.lite, cfg.GetModel(TierLite))
			assert.Equal(t, tt.standard, cfg.GetModel(TierStandard))
			assert.InDelta(t, 0.1, cfg.Temperature, 0.0001)
		})
	}
}

func TestGetModel(t *testing.T) {
	onlyLite := &Config{Models: map[ModelTier]string{TierLite: "small"}}
	assert.Equal(t, "small", onlyLite.GetModel(TierAdvanced))
	assert.Equal(t, "small", onlyLite.GetModel("unknown"))

	withStandard := &Config{Models: map[ModelTier]string{TierLite: "small", TierStandard: "mid"}}
	assert.Equal(t, "mid", withStandard.GetModel(TierAdvanced))

	assert.Equal(t, "", (&Config{}).GetModel(TierLite))
}

func TestWithModel_CopiesModels(t *testing.T) {
	base := DefaultConfig()
	tuned := base.WithModel(TierLite, "classifier-v2")

	assert.Equal(t, "gemini-2.5-flash-lite", base.GetModel(TierLite))
	assert.Equal(t, "classifier-v2", tuned.GetModel(TierLite))
	assert.Equal(t, base.GetModel(TierStandard), tuned.GetModel(TierStandard))
	assert.Equal(t, base.Temperature, tuned.Temperature)
}
