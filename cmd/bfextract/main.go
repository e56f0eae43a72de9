package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
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
	inputDir := flag.String("input", "", "Directory containing brightfield images")
	outputName := flag.String("output", "bf_results.csv", "Output results table, relative to the output directory")
	configPath := flag.String("config", config.Getenv(config.EnvConfig, ""), "YAML configuration file")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
	intermediaryDir := flag.String("intermediary-dir", "", "Directory to save bandpassed and mask images (disabled when empty)")
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
	if *intermediaryDir != "" {
		cfg.BF.IntermediaryDir = *intermediaryDir
	}
	lg := logger.NewConsole("bfextract", cfg.Output.LogLevel)

	fmt.Println("================================")
	fmt.Println("BRIGHTFIELD FEATURE EXTRACTION")
	fmt.Printf("Bandpass: %s\n", cfg.BF.Bandpass)
	fmt.Printf("Threshold: %s\n", cfg.BF.Threshold)
	fmt.Printf("Toolkit: %s\n", cv.Backend)
	fmt.Println("================================")

	images, err := imageio.LoadDir(*inputDir, models.Brightfield)
	if err != nil {
		log.Fatalf("Failed to load images: %v", err)
	}
	fmt.Printf("Loaded %d images from %s\n", len(images), *inputDir)

	opts, err := extract.NewBFOptions(cfg.BF.Bandpass, cfg.BF.Threshold, lg)
	if err != nil {
		log.Fatalf("Invalid extractor options: %v", err)
	}
	opts.IntermediaryDir = cfg.BF.IntermediaryDir

	startTime := time.Now()
	result := extract.ExtractBF(images, cv.Default(), opts)
	processingTime := time.Since(startTime)

	outputPath := filepath.Join(cfg.Output.Dir, *outputName)
	if err := results.WriteFile(outputPath, result.Rows); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}

	if cfg.Output.ResultsDB != "" {
		params := cfg.BF.Bandpass + "; " + cfg.BF.Threshold
		runID, err := results.SaveRun(cfg.Output.ResultsDB, models.Brightfield, params, result.Rows)
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

	if cfg.BF.IntermediaryDir != "" {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", cfg.BF.IntermediaryDir)
		fmt.Println("- 01_bandpass: 8-bit images after the bandpass filter")
		fmt.Println("- 02_mask: thresholded particle masks")
	}
}
