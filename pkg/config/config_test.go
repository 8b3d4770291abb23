package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1.5, cfg.Ranking.K1)
	assert.Equal(t, 0.75, cfg.Ranking.B)
	assert.Positive(t, cfg.Ranking.Workers)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 1000, cfg.Corpus.FullTextPrefix)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docrank.yaml")
	data := []byte(`
ranking:
  k1: 1.2
  b: 0.5
redis:
  enabled: true
  cacheTTL: 5s
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("DR_RANKING_WORKERS", "3")
	t.Setenv("DR_CORPUS_RELOAD_INTERVAL", "15m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1.2, cfg.Ranking.K1)
	assert.Equal(t, 0.5, cfg.Ranking.B)
	assert.Equal(t, 3, cfg.Ranking.Workers)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 15*time.Minute, cfg.Corpus.ReloadInterval)
	assert.Equal(t, 60*time.Second, cfg.Corpus.LoadTimeout)
}

func TestLoadRejectsBadRanking(t *testing.T) {
	t.Setenv("DR_RANKING_B", "1.5")
	_, err := Load("")
	require.Error(t, err)
}

func TestRankingValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RankingConfig
		wantErr bool
	}{
		{"defaults", RankingConfig{K1: 1.5, B: 0.75}, false},
		{"zero", RankingConfig{K1: 0, B: 0}, false},
		{"b one", RankingConfig{K1: 2, B: 1}, false},
		{"negative k1", RankingConfig{K1: -0.1, B: 0.75}, true},
		{"negative b", RankingConfig{K1: 1.2, B: -0.01}, true},
		{"b above one", RankingConfig{K1: 1.2, B: 1.01}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
