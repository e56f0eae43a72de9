package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"bacteriahts/internal/logger"
	"bacteriahts/pkg/config"
	"bacteriahts/pkg/subgroup"
	"bacteriahts/pkg/visualize"
)

func main() {
	// .env is loaded first so it can provide flag defaults
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	// Parse command line arguments
	workbookPath := flag.String("input", "", "Merged HTS workbook (.xlsx)")
	strain := flag.String("strain", config.Getenv(config.EnvStrain, ""), "Strain name")
	outputDir := flag.String("output", "", "Directory for the plots (overrides config)")
	configPath := flag.String("config", config.Getenv(config.EnvConfig, ""), "YAML configuration file")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
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
	if *workbookPath == "" || *strain == "" {
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
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	lg := logger.NewConsole("zsubgroups", cfg.Output.LogLevel)

	group1Rule, err := subgroup.ParseEdgeRule(cfg.Visualizer.Group1EdgeRule)
	if err != nil {
		log.Fatalf("Invalid group1 edge rule: %v", err)
	}
	group2Rule, err := subgroup.ParseEdgeRule(cfg.Visualizer.Group2EdgeRule)
	if err != nil {
		log.Fatalf("Invalid group2 edge rule: %v", err)
	}

	opts := visualize.Options{
		Strain:    *strain,
		OutputDir: cfg.Output.Dir,
		Binning: subgroup.Options{
			Group1Rule:    group1Rule,
			Group2Rule:    group2Rule,
			Group2Floor:   cfg.Visualizer.Group2Floor,
			MaxGroup2Bins: cfg.Visualizer.MaxGroup2Bins,
		},
		Averages: cfg.Visualizer.Averages,
		Summary:  cfg.Visualizer.Summary,
		Logger:   lg,
	}

	fmt.Println("================================")
	fmt.Println("Z-VALUE SUBGROUP VISUALIZATION")
	fmt.Printf("Strain: %s\n", *strain)
	fmt.Println("================================")

	startTime := time.Now()
	report, err := visualize.Run(cfg, *workbookPath, opts)
	if err != nil {
		log.Fatalf("Visualization failed: %v", err)
	}

	fmt.Printf("\nWrote %d images to %s in %.2f seconds\n", len(report.Files), cfg.Output.Dir, time.Since(startTime).Seconds())

	fmt.Println("\nRows per bin:")
	for _, c := range report.Counts {
		if c.Count > 0 {
			fmt.Printf("- %s %s %s: %d\n", c.Group, c.Bin.Regime, c.Bin.Label, c.Count)
		}
	}

	if len(report.Failures) > 0 {
		fmt.Println("\nSkipped shape groups:")
		for _, f := range report.Failures {
			fmt.Printf("- %s: %v\n", f.Group, f.Err)
		}
	}
}
