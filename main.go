package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/YoctoVision/labelT/autolabel"
	"github.com/YoctoVision/labelT/cluster"
	"github.com/YoctoVision/labelT/config"
	"github.com/YoctoVision/labelT/curate"
	"github.com/YoctoVision/labelT/database"
	"github.com/YoctoVision/labelT/detector"
	"github.com/YoctoVision/labelT/imageprocessor"
	"github.com/YoctoVision/labelT/labels"
	"github.com/YoctoVision/labelT/logging"
	"github.com/YoctoVision/labelT/montage"
	"github.com/YoctoVision/labelT/scanner"
	"github.com/YoctoVision/labelT/signalhandler"
	"github.com/YoctoVision/labelT/utils"
)

func main() {
	// Set up signal handling so batches can be cancelled cleanly
	ctx, cancel := signalhandler.SetupContext()
	defer cancel()

	// Set the optimal number of CPUs to use
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	// Parse command line arguments into a map
	args := utils.ParseArguments()

	// Environment-backed defaults, overridden by flags below
	cfg := config.Load()

	// Get the command (cluster or autolabel)
	command, hasCommand := args["command"]

	// Setup debug logging if enabled
	debugMode := false
	if _, ok := args["debug"]; ok {
		debugMode = true
		logPath := cfg.LogFile
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
		}
	}
	defer logging.CloseLogger()

	// Check if required arguments are missing
	showUsage := !hasCommand
	if hasCommand && args["folder"] == "" {
		showUsage = true
	}

	if showUsage {
		utils.PrintUsage()
		os.Exit(1)
	}

	switch command {
	case "cluster":
		handleClusterCommand(ctx, args, cfg, debugMode)
	case "autolabel":
		handleAutolabelCommand(ctx, args, cfg, debugMode)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		utils.PrintUsage()
		os.Exit(1)
	}
}

// validateFolder verifies the dataset folder exists and is a directory
func validateFolder(folderPath string) {
	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatalf("Folder path does not exist: %s", folderPath)
		} else {
			log.Fatalf("Cannot access folder path: %s (%v)", folderPath, err)
		}
	}
	if !folderInfo.IsDir() {
		log.Fatalf("Path is not a directory: %s", folderPath)
	}
}

func handleClusterCommand(ctx context.Context, args map[string]string, cfg *config.Config, debugMode bool) {
	folderPath := args["folder"]
	validateFolder(folderPath)

	// Hash algorithm selection
	hashName := cfg.HashMethod
	if v, ok := args["hash"]; ok && v != "" {
		hashName = v
	}
	algorithm, err := imageprocessor.ParseHashKind(hashName)
	if err != nil {
		log.Fatalf("Invalid hash algorithm: %v", err)
	}

	// Hamming distance threshold
	threshold := cfg.Threshold
	if v, ok := args["threshold"]; ok {
		threshold, err = utils.ParseThreshold(v)
		if err != nil {
			log.Fatalf("Invalid threshold: %v", err)
		}
	}
	if threshold < 0 || threshold > 64 {
		log.Fatalf("Invalid threshold %d, expected 0-64", threshold)
	}

	_, skipSingles := args["skip-singles"]
	_, forceRewrite := args["force"]

	workers := cfg.Workers
	if workers <= 0 {
		workers = signalhandler.GetOptimalProcs()
	}

	startTime := time.Now()

	// Open the hash cache unless it is disabled
	var db *sql.DB
	if _, noCache := args["no-cache"]; !noCache {
		dbPath := cfg.CachePath
		if v, ok := args["cache"]; ok && v != "" {
			dbPath = v
		}

		// Initialize database with retry logic
		const maxRetries = 3
		for i := 0; i < maxRetries; i++ {
			db, err = database.InitDatabase(dbPath)
			if err == nil {
				break
			}

			if i < maxRetries-1 {
				log.Printf("Error initializing hash cache (attempt %d/%d): %v - retrying...",
					i+1, maxRetries, err)
				time.Sleep(time.Second * time.Duration(i+1))
			} else {
				log.Fatalf("Error initializing hash cache after %d attempts: %v", maxRetries, err)
			}
		}
		defer db.Close()
	}

	infos, err := scanner.HashFolder(ctx, db, scanner.Options{
		FolderPath:   folderPath,
		Algorithm:    algorithm,
		ForceRewrite: forceRewrite,
		DebugMode:    debugMode,
		MaxWorkers:   workers,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Hash pass cancelled.")
			os.Exit(1)
		}
		log.Fatalf("Error hashing folder: %v", err)
	}

	clusters, err := cluster.Partition(infos, threshold, skipSingles)
	if err != nil {
		log.Fatalf("Error clustering images: %v", err)
	}

	printClusters(clusters)

	total, clustered, singletons := cluster.Summarize(clusters)
	fmt.Printf("\nClustering completed successfully!\n")
	fmt.Printf("Total execution time: %v\n", time.Since(startTime))
	fmt.Printf("\nSummary:\n")
	fmt.Printf("- Images hashed: %d\n", len(infos))
	fmt.Printf("- Clusters: %d (%d images, %d singletons)\n", total, clustered, singletons)

	if db != nil {
		if stats, err := database.GetCacheStats(db, string(algorithm)); err == nil && stats != nil {
			fmt.Printf("- Cached hashes (%s): %d (%d unique)\n",
				algorithm, stats.TotalEntries, stats.UniqueHashes)
		}
	}

	if sheetDir, ok := args["sheet-dir"]; ok && sheetDir != "" {
		written, err := montage.WriteSheets(clusters, sheetDir, montage.DefaultThumbSize)
		if err != nil {
			log.Fatalf("Error writing contact sheets: %v", err)
		}
		fmt.Printf("- Contact sheets written: %d (%s)\n", written, sheetDir)
	}

	if pruneDir, ok := args["prune-dir"]; ok && pruneDir != "" {
		stats, err := curate.PruneClusters(clusters, pruneDir)
		if err != nil {
			log.Fatalf("Error pruning clusters: %v", err)
		}
		fmt.Printf("- Duplicates moved to %s: %d (failed: %d)\n", pruneDir, stats.Moved, stats.Failed)
	}
}

// printClusters lists every cluster with its members, seed first
func printClusters(clusters []cluster.Cluster) {
	if len(clusters) == 0 {
		fmt.Println("\nNo clusters found.")
		return
	}

	fmt.Println("\nClusters:")
	for i, c := range clusters {
		fmt.Printf("Cluster %d (%d images):\n", i+1, c.Size())
		for _, member := range c.Members {
			fmt.Printf("  %s\n", member.Path)
		}
	}
}

func handleAutolabelCommand(ctx context.Context, args map[string]string, cfg *config.Config, debugMode bool) {
	folderPath := args["folder"]
	validateFolder(folderPath)

	modelPath := cfg.ModelPath
	if v, ok := args["model"]; ok && v != "" {
		modelPath = v
	}
	if modelPath == "" {
		fmt.Println("Error: Missing model path (use --model=PATH)")
		os.Exit(1)
	}
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		log.Fatalf("Model file does not exist: %s", modelPath)
	}

	classFile := cfg.ClassFile
	if v, ok := args["classes"]; ok && v != "" {
		classFile = v
	}
	if classFile == "" {
		fmt.Println("Error: Missing class file (use --classes=PATH)")
		os.Exit(1)
	}

	// An invalid class registry is fatal, nothing proceeds without it
	registry, err := labels.LoadRegistry(classFile)
	if err != nil {
		log.Fatalf("Error loading class registry: %v", err)
	}
	fmt.Printf("Loaded %d classes from %s\n", registry.Len(), classFile)

	confidence := cfg.Confidence
	if v, ok := args["conf"]; ok {
		confidence, err = utils.ParseFraction("confidence", v)
		if err != nil {
			log.Fatalf("Invalid confidence: %v", err)
		}
	}

	iou := cfg.IoU
	if v, ok := args["iou"]; ok {
		iou, err = utils.ParseFraction("iou", v)
		if err != nil {
			log.Fatalf("Invalid IoU: %v", err)
		}
	}

	inputWidth, inputHeight := cfg.InputWidth, cfg.InputHeight
	if v, ok := args["input-size"]; ok {
		inputWidth, inputHeight, err = utils.ParseInputSize(v)
		if err != nil {
			log.Fatalf("Invalid input size: %v", err)
		}
	}

	det, err := detector.NewONNXDetector(detector.Options{
		ModelPath:   modelPath,
		Classes:     registry.Len(),
		Confidence:  float32(confidence),
		IoU:         float32(iou),
		InputWidth:  inputWidth,
		InputHeight: inputHeight,
		LibraryPath: cfg.OrtLibPath,
	})
	if err != nil {
		log.Fatalf("Error loading detection model: %v", err)
	}
	defer det.Close()

	startTime := time.Now()

	if _, err := autolabel.Run(ctx, det, registry, autolabel.Options{
		FolderPath: folderPath,
		Confidence: confidence,
		DebugMode:  debugMode,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(1)
		}
		log.Fatalf("Error during auto-labeling: %v", err)
	}

	fmt.Printf("Total execution time: %v\n", time.Since(startTime))
}
