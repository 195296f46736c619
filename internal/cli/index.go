package cli

import (
	"fmt"

	"github.com/kilupskalvis/vbs/internal/catalog"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build catalog files",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build <media-info-dir>...",
	Short: "Build the video watch index from media-info files",
	Long: `Walk media-info directories and write a JSON index mapping each video
name to its watch link. Files without a watch_url are skipped.

Example:
  vbs index build --out data/watch_index.json media-info/`,
	Args: cobra.MinimumNArgs(1),
	Run:  runIndexBuild,
}

var indexOut string

func init() {
	indexCmd.AddCommand(indexBuildCmd)
	indexBuildCmd.Flags().StringVarP(&indexOut, "out", "o", "watch_index.json", "Output file")
}

func runIndexBuild(cmd *cobra.Command, args []string) {
	idx, err := catalog.BuildWatchIndex(newLogger(), args...)
	if err != nil {
		exitError("%v", err)
	}
	if err := idx.Write(indexOut); err != nil {
		exitError("failed to write index: %v", err)
	}
	fmt.Printf("Indexed %d videos into %s\n", idx.Len(), indexOut)
}
