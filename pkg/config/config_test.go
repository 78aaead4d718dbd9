package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/statistics"
)

func TestDefaultConfigMatchesParameters(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	if diff := cmp.Diff(models.DefaultParameters(), cfg.Parameters()); diff != "" {
		t.Errorf("Parameters() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "coordinated", cfg.Processing.Mode)
	assert.Positive(t, cfg.Processing.NumWorkers)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Analysis.NSamples = 40
	cfg.Normals.ProbeDistances = []float64{1, 3}
	cfg.Processing.Mode = "curvature"
	cfg.Output.DebugImages = true
	require.NoError(t, SaveConfig(cfg, path))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "analysis:\n  pixelSize: 65\nprocessing:\n  smoothingMethod: savgol\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	p := cfg.Parameters()
	assert.Equal(t, 65.0, p.PixelSize)
	assert.Equal(t, models.SmoothingSavitzkyGolay, p.SmoothingMethod)
	assert.Equal(t, 75, p.NSamples)
	assert.Equal(t, 0.6, p.NormalVoteRatio)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"even segment": "analysis:\n  segmentLength: 8\n",
		"bad mode":     "processing:\n  mode: both-ways\n",
		"bad ratio":    "normals:\n  voteRatio: 1.5\n",
		"workers":      "processing:\n  numWorkers: -1\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(data), 0644))
			_, err := LoadConfig(path)
			assert.True(t, errors.Is(err, models.ErrInvalidParameters), "got %v", err)
		})
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis: [1, 2"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nSamples: 75")
	assert.Contains(t, string(data), "voteRatio: 0.6")
}

func TestDefaultOutlierZFlagsIntensityMeans(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, models.DefaultResampleSize, cfg.Processing.ResampleSize)

	frames := make([]statistics.FrameStats, 11)
	for i := range frames {
		frames[i] = statistics.FrameStats{Index: i, Mean: 10, Valid: 40, Requested: 40}
	}
	frames[10].Mean = 100

	flags := statistics.FlagOutliers(frames, cfg.Processing.OutlierZ)
	require.Len(t, flags, 1)
	assert.Equal(t, 10, flags[0].Frame)
	assert.Equal(t, statistics.FlagMeanOutlier, flags[0].Kind)
}
