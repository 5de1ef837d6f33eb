package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments() map[string]string {
	args := make(map[string]string)

	// First, identify the command (cluster/autolabel)
	command := ""
	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "cluster" || os.Args[i] == "autolabel" {
			command = os.Args[i]
			commandIndex = i
			break
		}
	}

	if command != "" {
		args["command"] = command
	}

	// Process all arguments, skipping the command
	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}

		arg := os.Args[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			flagName := strings.TrimPrefix(parts[0], "--")
			args[flagName] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			// Check if this is a boolean flag (no value)
			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				// The next argument is the value
				args[flagName] = os.Args[i+1]
				i++ // Skip the value in the next iteration
			}
		}
	}

	return args
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s cluster --folder=PATH [--hash=ahash|phash|dhash] [--threshold=N] [--skip-singles]\n", os.Args[0])
	fmt.Printf("            [--cache=PATH] [--no-cache] [--force] [--sheet-dir=PATH] [--prune-dir=PATH]\n")
	fmt.Printf("            [--workers=N] [--debug] [--logfile=PATH]\n")
	fmt.Printf("  %s autolabel --folder=PATH --model=PATH --classes=PATH [--conf=VALUE] [--iou=VALUE]\n", os.Args[0])
	fmt.Printf("            [--input-size=WxH] [--debug] [--logfile=PATH]\n")
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --folder       : Path to folder containing dataset images\n")
	fmt.Printf("  --hash         : Perceptual hash algorithm for clustering (default: ahash)\n")
	fmt.Printf("  --threshold    : Maximum Hamming distance within a cluster, 0-64 (default: 10)\n")
	fmt.Printf("  --skip-singles : Drop clusters with a single image from the output\n")
	fmt.Printf("  --cache        : Path to hash cache database\n")
	fmt.Printf("  --no-cache     : Disable the hash cache entirely\n")
	fmt.Printf("  --force        : Recompute hashes even when cached\n")
	fmt.Printf("  --sheet-dir    : Write one contact sheet JPEG per cluster into this directory\n")
	fmt.Printf("  --prune-dir    : Move duplicate cluster members (all but the first) into this directory\n")
	fmt.Printf("  --model        : Path to the ONNX detection model\n")
	fmt.Printf("  --classes      : Path to the class list (data.yaml or one name per line)\n")
	fmt.Printf("  --conf         : Confidence threshold for auto-labeling, 0.0-1.0 (default: 0.25)\n")
	fmt.Printf("  --iou          : IoU threshold for duplicate box suppression (default: 0.45)\n")
	fmt.Printf("  --input-size   : Model input resolution (default: 640x640)\n")
	fmt.Printf("  --workers      : Number of hashing workers (default: 3/4 of CPUs)\n")
	fmt.Printf("  --debug        : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile      : Specify custom log file path (default: labelt.log)\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s cluster --folder=./dataset/images --hash=phash --threshold=8 --skip-singles\n", os.Args[0])
	fmt.Printf("  %s autolabel --folder=./dataset/images --model=yolov8n.onnx --classes=data.yaml --conf=0.3\n", os.Args[0])
}

// ParseThreshold parses and validates the Hamming distance threshold
func ParseThreshold(thresholdStr string) (int, error) {
	parsed, err := strconv.Atoi(thresholdStr)
	if err != nil || parsed < 0 || parsed > 64 {
		return 0, fmt.Errorf("invalid threshold value '%s', expected integer in 0-64", thresholdStr)
	}
	return parsed, nil
}

// ParseFraction parses and validates a 0.0-1.0 value (confidence, IoU)
func ParseFraction(name, s string) (float64, error) {
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		return 0, fmt.Errorf("invalid %s value '%s', expected number in 0.0-1.0", name, s)
	}
	return parsed, nil
}

// ParseInputSize parses a WxH resolution string such as "640x640"
func ParseInputSize(s string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid input size '%s', expected WxH", s)
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid input size '%s', expected WxH", s)
	}
	return w, h, nil
}
