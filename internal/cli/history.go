package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/vbs/internal/evaluation"
	"github.com/kilupskalvis/vbs/internal/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show sent submissions",
	Long:  `Display the submissions sent from this project, newest first.`,
	Run:   runHistory,
}

var (
	historyLimit int
	historyBoard string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "n", "n", 20, "Limit the number of submissions to show (0 for all)")
	historyCmd.Flags().StringVar(&historyBoard, "board", "", "Only show submissions of this board")
}

func runHistory(cmd *cobra.Command, args []string) {
	c := initHistoryContext()
	defer c.Close()

	var (
		records []*history.Record
		err     error
	)
	if historyBoard != "" {
		records, err = c.History.ForBoard(historyBoard, historyLimit)
	} else {
		records, err = c.History.Recent(historyLimit)
	}
	if err != nil {
		exitError("failed to read history: %v", err)
	}

	if len(records) == 0 {
		fmt.Println("No submissions yet")
		return
	}

	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	for _, r := range records {
		yellow.Printf("%s ", r.FinishedAt.Local().Format("2006-01-02 15:04:05"))
		cyan.Printf("%-5s ", r.Task)
		switch {
		case r.Error != "":
			color.New(color.FgRed).Print("failed ")
		case r.Late:
			color.New(color.FgMagenta).Print("late   ")
		default:
			color.New(color.FgGreen).Printf("%-6d ", r.Status)
		}
		fmt.Printf("%s  %s", shortID(r.BoardID), answerSummary(r.Body))
		if r.Error != "" {
			fmt.Printf("  (%s)", r.Error)
		}
		fmt.Println()
	}
}

// answerSummary renders the first answer of a stored request body.
func answerSummary(body string) string {
	var rb evaluation.RequestBody
	if err := json.Unmarshal([]byte(body), &rb); err != nil || len(rb.AnswerSets) == 0 || len(rb.AnswerSets[0].Answers) == 0 {
		return body
	}
	a := rb.AnswerSets[0].Answers[0]
	if a.Text != "" {
		return a.Text
	}
	if a.Start != nil {
		return fmt.Sprintf("%s@%dms", a.MediaItemName, *a.Start)
	}
	return a.MediaItemName
}
