package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/vbs/internal/catalog"
	"github.com/kilupskalvis/vbs/internal/models"
	"github.com/kilupskalvis/vbs/internal/window"
	"github.com/spf13/cobra"
)

var windowCmd = &cobra.Command{
	Use:   "window <frame-path>",
	Short: "Print the related frames around a keyframe",
	Long: `Print the window of keyframes around a reference keyframe.

The path is <collection>/<video>/<file> and may carry a leading data
directory. With --stride 0 the frames come from the grouped index, in
video order. With a positive stride frame numbers are synthesized around
the reference, nearest first.

Examples:
  vbs window K01/L01_V001/f000120.webp
  vbs window K01/L01_V001/f000120.webp --before 2 --after 2 --stride 25`,
	Args: cobra.ExactArgs(1),
	Run:  runWindow,
}

var (
	windowBefore int
	windowAfter  int
	windowStride int
)

func init() {
	windowCmd.Flags().IntVar(&windowBefore, "before", -1, "Frames before the reference (default: window_before from config)")
	windowCmd.Flags().IntVar(&windowAfter, "after", -1, "Frames after the reference (default: window_after from config)")
	windowCmd.Flags().IntVar(&windowStride, "stride", 0, "Frame-number step; 0 reads the grouped index")
}

func runWindow(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ref, err := models.ParseFrameID(args[0])
	if err != nil {
		exitError("%v", err)
	}

	before, after := c.Config.WindowBefore, c.Config.WindowAfter
	if cmd.Flags().Changed("before") {
		before = windowBefore
	}
	if cmd.Flags().Changed("after") {
		after = windowAfter
	}

	frames, err := relatedFrames(c.Config.Resolve(c.Config.GroupedIndex), ref, windowStride, before, after)
	if err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	marked := false
	for i, f := range frames {
		if !marked && f == ref {
			green.Printf("%4d  %s  <\n", i, f)
			marked = true
			continue
		}
		fmt.Printf("%4d  %s\n", i, f)
	}
}

// relatedFrames reads the grouped index only when stride is 0.
func relatedFrames(indexPath string, ref models.FrameID, stride, before, after int) ([]models.FrameID, error) {
	var idx *catalog.GroupedIndex
	if stride == 0 {
		var err error
		if idx, err = catalog.LoadGroupedIndex(indexPath); err != nil {
			return nil, err
		}
	}
	return window.Stride(idx, ref, stride, before, after)
}
