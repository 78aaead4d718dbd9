package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/analysis"
	"cellcurvature/pkg/config"
	"cellcurvature/pkg/report"
	"cellcurvature/pkg/stack"
	"cellcurvature/pkg/statistics"
	"cellcurvature/pkg/synthetic"
	"cellcurvature/pkg/visualization"
)

func main() {
	maskDir := flag.String("mask", "", "Directory containing binary mask frames")
	fluorDir := flag.String("fluor", "", "Directory containing fluorescence frames")
	configPath := flag.String("config", "cellcurvature.yaml", "YAML configuration file")
	outputDir := flag.String("out", "", "Output directory (overrides the config)")
	workers := flag.Int("workers", 0, "Number of frames analysed in parallel (overrides the config)")
	mode := flag.String("mode", "", "Analysis mode: coordinated, curvature or intensity")
	frameIndex := flag.Int("frame", -1, "Analyse only this frame")
	simulate := flag.Int("simulate", 0, "Analyse a synthetic stack with this many frames")
	noise := flag.Float64("noise", 0, "Standard deviation of Gaussian noise added to the synthetic fluorescence")
	seed := flag.Uint64("seed", 1, "Seed of the synthetic noise")
	saveSimulated := flag.Bool("save-simulated", false, "Write the synthetic stack next to the results")
	debug := flag.Bool("debug", false, "Verbose logging and per-frame overlay images")
	plots := flag.Bool("plot", true, "Write the scatter and profile plots")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			logger.WithError(err).Fatal("Failed to write config")
		}
		logger.WithField("path", *writeConfig).Info("Default configuration written")
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *workers > 0 {
		cfg.Processing.NumWorkers = *workers
	}
	if *mode != "" {
		cfg.Processing.Mode = *mode
	}
	if *debug {
		cfg.Output.Verbose = true
		cfg.Output.DebugImages = true
	}
	cfg.Output.Plot = cfg.Output.Plot && *plots
	if cfg.Output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if *simulate == 0 && (*maskDir == "" || *fluorDir == "") {
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := source{mask: *maskDir, fluor: *fluorDir, simulate: *simulate, noise: *noise, seed: *seed, save: *saveSimulated}
	if err := run(ctx, logger, cfg, src, *frameIndex); err != nil {
		logger.WithError(err).Fatal("Analysis failed")
	}
}

// source names where the frames come from: two stack directories or a
// synthetic stack.
type source struct {
	mask, fluor string
	simulate    int
	noise       float64
	seed        uint64
	save        bool
}

func loadFrames(logger *logrus.Logger, cfg *config.Config, src source) ([]models.Frame, error) {
	if src.simulate == 0 {
		logger.WithFields(logrus.Fields{"mask": src.mask, "fluor": src.fluor}).Info("Loading stacks")
		return stack.Load(src.mask, src.fluor)
	}

	logger.WithFields(logrus.Fields{"frames": src.simulate, "noise": src.noise}).Info("Generating synthetic bleb stack")
	frames := synthetic.BlebStack(src.simulate, 256, 256, 70, 25)
	if src.noise > 0 {
		frames = synthetic.WithNoise(frames, src.noise, src.seed)
	}
	if src.save {
		dir := filepath.Join(cfg.Output.Dir, "simulated")
		if err := stack.Save(frames, filepath.Join(dir, "masks"), filepath.Join(dir, "fluorescence"), ".tif"); err != nil {
			return nil, err
		}
		logger.WithField("dir", dir).Info("Synthetic stack saved")
	}
	return frames, nil
}

func run(ctx context.Context, logger *logrus.Logger, cfg *config.Config, src source, frameIndex int) error {
	frames, err := loadFrames(logger, cfg, src)
	if err != nil {
		return err
	}
	if frameIndex >= 0 {
		if frameIndex >= len(frames) {
			return fmt.Errorf("frame %d out of range, stack has %d frames", frameIndex, len(frames))
		}
		frames = frames[frameIndex : frameIndex+1]
	}

	m, err := analysis.ParseMode(cfg.Processing.Mode)
	if err != nil {
		return err
	}
	analyzer, err := analysis.NewAnalyzer(cfg.Parameters(), analysis.WithLogger(logger), analysis.WithMode(m))
	if err != nil {
		return err
	}

	start := time.Now()
	batch, err := analyzer.RunBatch(ctx, frames, analysis.BatchOptions{
		Workers: cfg.Processing.NumWorkers,
		Progress: func(completed, total int, message string) {
			logger.WithFields(logrus.Fields{"completed": completed, "total": total}).Info(message)
		},
	})
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"frames":    len(batch.Frames),
		"succeeded": batch.Succeeded(),
		"elapsed":   time.Since(start).Round(time.Millisecond),
	}).Info("Analysis finished")

	for _, f := range batch.Failed() {
		entry := logger.WithField("frame", f.Index).WithError(f.Err)
		if analysis.IsSkippable(f.Err) {
			entry.Warn("Frame skipped")
		} else {
			entry.Error("Frame failed")
		}
	}
	for _, fl := range statistics.FlagOutliers(batch.FrameStats(), cfg.Processing.OutlierZ) {
		logger.Warn(fl.String())
	}
	for _, s := range report.SummaryTable(batch) {
		logger.WithFields(logrus.Fields{
			"n":      s.Summary.N,
			"mean":   s.Summary.Mean,
			"median": s.Summary.Median,
			"std":    s.Summary.Std,
		}).Info(s.Measure)
	}

	paths, err := report.WriteDir(cfg.Output.Dir, batch)
	if err != nil {
		return err
	}
	for _, p := range paths {
		logger.WithField("path", p).Info("Table written")
	}

	if cfg.Output.Plot {
		writePlots(logger, cfg.Output.Dir, batch)
	}

	if cfg.Output.DebugImages {
		dir := filepath.Join(cfg.Output.Dir, "debug")
		if err := visualization.SaveSequence(frames, batch, dir); err != nil {
			return err
		}
		logger.WithField("dir", dir).Info("Debug images written")
	}

	// a cancelled batch still writes what it finished
	return batch.Err
}

// writePlots logs plotting failures instead of aborting; a frame set with no
// correlated points has nothing to plot.
func writePlots(logger *logrus.Logger, dir string, batch *analysis.BatchResult) {
	path := filepath.Join(dir, "curvature_vs_intensity.png")
	if err := report.ScatterPlot(batch, path); err != nil {
		logger.WithError(err).Warn("Scatter plot skipped")
	} else {
		logger.WithField("path", path).Info("Plot written")
	}

	for i := range batch.Frames {
		f := &batch.Frames[i]
		if !f.OK() {
			continue
		}
		path := filepath.Join(dir, "profiles", fmt.Sprintf("frame_%03d.png", f.Index))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			logger.WithError(err).Warn("Profile plots skipped")
			return
		}
		if err := report.ProfilePlot(f, path); err != nil {
			logger.WithField("frame", f.Index).WithError(err).Debug("Profile plot skipped")
		}
	}
}
