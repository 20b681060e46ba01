//go:build ignore

// build.go - Daily Analytics build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, analytics-server, processor, mlpipeline, dashboard, analytics-mcp, test, clean

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

const module = "dailyanalytics"

var (
	rootDir string
	distDir string

	// Commands under ./cmd built by "all"
	executables = []string{
		"analytics-server",
		"processor",
		"mlpipeline",
		"dashboard",
		"analytics-mcp",
	}

	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
)

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("Failed to get current directory: %v", err))
	}
	rootDir = cwd
	distDir = filepath.Join(rootDir, "dist")

	if _, err := os.Stat(filepath.Join(rootDir, "go.mod")); err != nil {
		panic(fmt.Sprintf("go.mod not found in %s, run build.go from the repository root", rootDir))
	}
}

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	printHeader()
	startTime := time.Now()

	switch *target {
	case "all":
		buildAll(*verbose)
	case "test":
		runTests(*verbose)
	case "clean":
		clean()
	case "help", "-h":
		showHelp()
		return
	default:
		if !isExecutable(*target) {
			printError(fmt.Sprintf("Unknown target: %s", *target))
			showHelp()
			os.Exit(1)
		}
		buildExecutable(*target, *verbose)
	}

	printSuccess(fmt.Sprintf("Done in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "      Daily Analytics - Build System       " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func isExecutable(name string) bool {
	for _, e := range executables {
		if e == name {
			return true
		}
	}
	return false
}

// Build every command and copy the example configuration
func buildAll(verbose bool) {
	printInfo("Building all components...")

	prepareDirectories()
	for _, name := range executables {
		buildExecutable(name, verbose)
	}
	copyConfigFiles()

	printSuccess("All components built successfully!")
}

// Build a specific executable
func buildExecutable(name string, verbose bool) {
	printInfo(fmt.Sprintf("Building %s...", name))

	exeName := name
	if runtime.GOOS == "windows" {
		exeName += ".exe"
	}
	outputPath := filepath.Join(distDir, exeName)

	ldflags := fmt.Sprintf("-s -w -X %s/internal/app.BuildTime=%s",
		module, time.Now().UTC().Format(time.RFC3339))

	args := []string{"build"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "-ldflags", ldflags, "-o", outputPath, "./cmd/"+name)

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stderr = os.Stderr
	if verbose {
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}

	if info, err := os.Stat(outputPath); err == nil {
		sizeMB := float64(info.Size()) / 1024 / 1024
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", exeName, sizeMB))
	}
}

func prepareDirectories() {
	dirs := []string{
		distDir,
		filepath.Join(distDir, "configs"),
		filepath.Join(distDir, "data", "models"),
		filepath.Join(distDir, "data", "reports"),
		filepath.Join(distDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			printError(fmt.Sprintf("Failed to create %s: %v", dir, err))
			os.Exit(1)
		}
	}
}

func copyConfigFiles() {
	src := filepath.Join(rootDir, "configs", "config.example.yaml")
	dest := filepath.Join(distDir, "configs", "config.yaml")

	if _, err := os.Stat(dest); err == nil {
		printInfo("Keeping existing dist/configs/config.yaml")
		return
	}
	data, err := os.ReadFile(src)
	if err != nil {
		printError(fmt.Sprintf("Failed to read %s: %v", src, err))
		return
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		printError(fmt.Sprintf("Failed to write %s: %v", dest, err))
	}
}

// Run tests
func runTests(verbose bool) {
	printInfo("Running Go tests...")
	args := []string{"test", "-race"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Go tests failed: %v", err))
		os.Exit(1)
	}
	printSuccess("All tests passed")
}

// Remove dist contents but keep the directory
func clean() {
	printInfo("Cleaning build artifacts...")

	entries, err := os.ReadDir(distDir)
	if os.IsNotExist(err) {
		printSuccess("Nothing to clean")
		return
	}
	if err != nil {
		printError(fmt.Sprintf("Failed to read %s: %v", distDir, err))
		os.Exit(1)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(distDir, entry.Name())); err != nil {
			printError(fmt.Sprintf("Failed to remove %s: %v", entry.Name(), err))
		}
	}
	printSuccess("Build artifacts cleaned")
}

func showHelp() {
	names := append([]string(nil), executables...)
	sort.Strings(names)

	fmt.Println("Usage: go run build.go [-target=TARGET] [-v]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all               Build every command (default)")
	for _, name := range names {
		fmt.Printf("  %-17s Build %s only\n", name, name)
	}
	fmt.Println("  test              Run all tests with the race detector")
	fmt.Println("  clean             Remove build artifacts")
}
