package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/vbs/internal/config"
	"github.com/kilupskalvis/vbs/internal/history"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a new vbs project",
	Long: `Initialize a new vbs project in the given directory (default: current).
This creates a .vbs directory holding the configuration, the board store
and the submission log. Relative catalog paths resolve against the project
directory.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runInit,
}

var (
	initSearchURL     string
	initEvalURL       string
	initGroupedIndex  string
	initVideoMetadata string
	initWatchIndex    string
	initUsername      string
	initFPS           float64
)

func init() {
	def := config.Default()
	f := initCmd.Flags()
	f.StringVar(&initSearchURL, "search-url", def.SearchURL, "Search backend URL")
	f.StringVar(&initEvalURL, "eval-url", def.EvalURL, "Evaluation server API URL")
	f.StringVar(&initGroupedIndex, "grouped-index", def.GroupedIndex, "Grouped keyframe index JSON")
	f.StringVar(&initVideoMetadata, "video-metadata", "", "Per-keyframe video metadata JSON")
	f.StringVar(&initWatchIndex, "watch-index", "", "Video watch link index JSON")
	f.StringVar(&initUsername, "username", "", "Evaluation server username")
	f.Float64Var(&initFPS, "fps", def.FPS, "Frame rate used to convert frames to milliseconds")
}

func runInit(cmd *cobra.Command, args []string) {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		exitError("failed to create %s: %v", dir, err)
	}

	cfg := config.Default()
	cfg.SearchURL = initSearchURL
	cfg.EvalURL = initEvalURL
	cfg.GroupedIndex = initGroupedIndex
	cfg.VideoMetadata = initVideoMetadata
	cfg.WatchIndex = initWatchIndex
	cfg.Username = initUsername
	cfg.FPS = initFPS

	cfg, err := config.Initialize(dir, cfg)
	if err != nil {
		exitError("failed to initialize project: %v", err)
	}

	st, err := history.New(cfg.HistoryPath())
	if err != nil {
		exitError("failed to create submission history: %v", err)
	}
	st.Close()

	if _, err := os.Stat(cfg.Resolve(cfg.GroupedIndex)); err != nil {
		color.Yellow("Warning: grouped index %s not found yet", cfg.Resolve(cfg.GroupedIndex))
	}

	fmt.Printf("Initialized vbs project in %s\n", cfg.VBSPath())
	fmt.Printf("Search backend:    %s\n", cfg.SearchURL)
	fmt.Printf("Evaluation server: %s\n", cfg.EvalURL)
}
