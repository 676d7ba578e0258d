package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoroute/lingoroute/pkg/models"
)

type stubAdapter struct{ name string }

func (s *stubAdapter) Name() string { return s.name }
func (s *stubAdapter) Translate(context.Context, Input) (Output, error) {
	return Output{Text: "x"}, nil
}

func TestRegistryCachesByFingerprint(t *testing.T) {
	built := 0
	r := NewRegistry(func(cfg models.ProviderConfig) (Adapter, error) {
		built++
		return &stubAdapter{name: cfg.Name}, nil
	})

	cfg := models.ProviderConfig{Name: "p", Credentials: []string{"k1"}, Priority: 1}
	a1, err := r.Get(cfg)
	require.NoError(t, err)

	// routing-only fields do not rebuild
	cfg.Priority = 5
	cfg.QualityThreshold = 0.9
	a2, err := r.Get(cfg)
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.Equal(t, 1, built)

	cfg.Credentials = []string{"k2"}
	a3, err := r.Get(cfg)
	require.NoError(t, err)
	assert.NotSame(t, a1, a3)
	assert.Equal(t, 2, built)
	assert.Equal(t, 1, r.Len())
}

func TestBuild(t *testing.T) {
	a, err := Build(models.ProviderConfig{Name: "a"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIAdapter{}, a)

	a, err = Build(models.ProviderConfig{Name: "b", Type: models.ProviderAnthropic})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicAdapter{}, a)
	assert.Equal(t, "b", a.Name())

	_, err = Build(models.ProviderConfig{Name: "c", Type: "deepl"})
	assert.Error(t, err)
}
