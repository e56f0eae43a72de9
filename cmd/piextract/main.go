package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"bacteriahts/internal/logger"
	"bacteriahts/internal/models"
	"bacteriahts/pkg/config"
	"bacteriahts/pkg/extract"
	"bacteriahts/pkg/imageio"
	"bacteriahts/pkg/imagej/cv"
	"bacteriahts/pkg/results"
)

func main() {
	// .env is loaded first so it can provide flag defaults
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing propidium iodide images")
	outputName := flag.String("output", "pi_results.csv", "Output results table, relative to the output directory")
	configPath := flag.String("config", config.Getenv(config.EnvConfig, ""), "YAML configuration file")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
	bgWUXGA := flag.String("bg-1200", "", "Background image for 1920x1200 images (overrides config)")
	bgFullHD := flag.String("bg-1080", "", "Background image for 1920x1080 images (overrides config)")
	resultsDB := flag.String("db", "", "SQLite database receiving the rows (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()
	if *logLevel != "" {
		cfg.Output.LogLevel = *logLevel
	}
	if *resultsDB != "" {
		cfg.Output.ResultsDB = *resultsDB
	}
	if cfg.PI.Backgrounds == nil {
		cfg.PI.Backgrounds = map[string]string{}
	}
	if *bgWUXGA != "" {
		cfg.PI.Backgrounds[models.WUXGA.String()] = *bgWUXGA
	}
	if *bgFullHD != "" {
		cfg.PI.Backgrounds[models.FullHD.String()] = *bgFullHD
	}
	lg := logger.NewConsole("piextract", cfg.Output.LogLevel)

	fmt.Println("================================")
	fmt.Println("PROPIDIUM IODIDE FEATURE EXTRACTION")
	fmt.Printf("Threshold: %s\n", cfg.PI.Threshold)
	fmt.Printf("Toolkit: %s\n", cv.Backend)
	fmt.Println("================================")

	// A missing background only skips the images of its resolution
	backgrounds := extract.NewBackgrounds()
	var bgPaths []string
	labels := make([]string, 0, len(cfg.PI.Backgrounds))
	for label := range cfg.PI.Backgrounds {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		path := cfg.PI.Backgrounds[label]
		res, err := models.ParseResolution(label)
		if err != nil {
			log.Fatalf("Invalid background resolution: %v", err)
		}
		bg, err := imageio.Load(path, models.PropidiumIodide)
		if err != nil {
			lg.Warn().Err(err).Str("resolution", label).Msg("background not available")
			continue
		}
		if bg.Resolution() != res {
			lg.Warn().
				Str("resolution", label).
				Str("actual", bg.Resolution().String()).
				Msg("background size does not match its resolution class")
			continue
		}
		backgrounds.Register(bg)
		bgPaths = append(bgPaths, path)
		fmt.Printf("Background %s: %s\n", label, path)
	}

	// Background files inside the input directory are not measured
	var skip []string
	for _, path := range bgPaths {
		if sameDir(filepath.Dir(path), *inputDir) {
			skip = append(skip, path)
		}
	}

	images, err := imageio.LoadDir(*inputDir, models.PropidiumIodide, skip...)
	if err != nil {
		log.Fatalf("Failed to load images: %v", err)
	}
	fmt.Printf("Loaded %d images from %s\n", len(images), *inputDir)

	opts, err := extract.NewPIOptions(cfg.PI.Threshold, lg)
	if err != nil {
		log.Fatalf("Invalid extractor options: %v", err)
	}

	startTime := time.Now()
	result := extract.ExtractPI(images, backgrounds, cv.Default(), opts)
	processingTime := time.Since(startTime)

	outputPath := filepath.Join(cfg.Output.Dir, *outputName)
	if err := results.WriteFile(outputPath, result.Rows); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}

	if cfg.Output.ResultsDB != "" {
		runID, err := results.SaveRun(cfg.Output.ResultsDB, models.PropidiumIodide, cfg.PI.Threshold, result.Rows)
		if err != nil {
			log.Fatalf("Failed to store results: %v", err)
		}
		fmt.Printf("Stored as run %d in %s\n", runID, cfg.Output.ResultsDB)
	}

	fmt.Printf("\nMeasured %d of %d images in %.2f seconds\n", len(result.Rows), len(images), processingTime.Seconds())
	fmt.Printf("Results table saved to: %s\n", outputPath)

	if len(result.Warnings) > 0 {
		fmt.Println("\nSkipped images:")
		for _, w := range result.Warnings {
			fmt.Printf("- %s\n", w)
		}
	}
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
