package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/vbs/internal/app"
	"github.com/kilupskalvis/vbs/internal/evaluation"
	"github.com/kilupskalvis/vbs/internal/history"
	"github.com/kilupskalvis/vbs/internal/models"
	"github.com/kilupskalvis/vbs/internal/submission"
	"github.com/spf13/cobra"
)

// cliBoardID tags history records written by the CLI.
const cliBoardID = "cli"

var previewCmd = &cobra.Command{
	Use:   "preview <kis|qa|trake> <video> <frame>...",
	Short: "Print the evaluation request body for a selection",
	Long: `Build the request body that would be sent to the evaluation server.

KIS and QA keep the last frame given. TRAKE collects every frame of the
video in ascending order. Frame numbers are converted to milliseconds with
the configured fps.

Examples:
  vbs preview kis L21_V001 250
  vbs preview qa L21_V001 273 --answer ambulance
  vbs preview trake L21_V001 10 5 42`,
	Args: cobra.MinimumNArgs(3),
	Run:  runPreview,
}

var submitCmd = &cobra.Command{
	Use:   "submit <kis|qa|trake> <video> <frame>...",
	Short: "Log in and submit a selection for evaluation",
	Long: `Log in to the evaluation server, pick the evaluation and send the
selection. The password is read from VBS_PASSWORD when --password is not
given. Each request is recorded in the submission history.`,
	Args: cobra.MinimumNArgs(3),
	Run:  runSubmit,
}

var (
	submitAnswer     string
	submitUsername   string
	submitPassword   string
	submitEvaluation string
)

func init() {
	for _, cmd := range []*cobra.Command{previewCmd, submitCmd} {
		cmd.Flags().StringVar(&submitAnswer, "answer", "", "QA answer text")
	}
	f := submitCmd.Flags()
	f.StringVar(&submitUsername, "username", "", "Evaluation username (default: username from config)")
	f.StringVar(&submitPassword, "password", os.Getenv("VBS_PASSWORD"), "Evaluation password (env: VBS_PASSWORD)")
	f.StringVar(&submitEvaluation, "evaluation", "", "Evaluation ID (default: first active evaluation)")
}

// selection builds the board state for the positional arguments.
func selection(args []string) (models.Task, []models.Entry, error) {
	task, err := models.ParseTask(args[0])
	if err != nil {
		return "", nil, err
	}

	s, err := submission.SelectTask(submission.NewState(), task)
	if err != nil {
		return "", nil, err
	}
	video := args[1]
	for _, a := range args[2:] {
		n, err := strconv.Atoi(a)
		if err != nil {
			return "", nil, fmt.Errorf("invalid frame number %q", a)
		}
		s, err = submission.SubmitFrame(s, task, models.Frame{VideoName: video, FrameIdx: n}, submission.DefaultMode(task))
		if err != nil {
			return "", nil, err
		}
	}
	if task == models.TaskQA && submitAnswer != "" {
		if s, err = submission.SetAnswer(s, 0, submitAnswer); err != nil {
			return "", nil, err
		}
	}
	return task, s.List(task), nil
}

func buildBody(c *cmdContext, args []string) (models.Task, *evaluation.RequestBody) {
	task, entries, err := selection(args)
	if err != nil {
		exitError("%v", err)
	}
	body, err := submission.Serialize(task, entries, "", c.Config.FPS)
	if err != nil {
		exitError("%v", err)
	}
	return task, body
}

func runPreview(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	_, body := buildBody(c, args)
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		exitError("%v", err)
	}
	fmt.Println(string(data))
}

func runSubmit(cmd *cobra.Command, args []string) {
	c := initHistoryContext()
	defer c.Close()

	task, body := buildBody(c, args)

	username := submitUsername
	if username == "" {
		username = c.Config.Username
	}
	if username == "" || submitPassword == "" {
		exitError("username and password are required")
	}

	ctx := context.Background()
	client := app.NewEvalClient(c.Config)

	session, err := client.Login(ctx, username, submitPassword)
	if err != nil {
		exitError("login failed: %v", err)
	}

	evalID := submitEvaluation
	if evalID == "" {
		ev, err := evaluation.FirstEvaluation(ctx, client, session.SessionID)
		if err != nil {
			exitError("%v", err)
		}
		evalID = ev.ID
		fmt.Printf("Evaluation: %s (%s)\n", ev.Name, shortID(ev.ID))
	}

	completed := make(chan *submission.Outcome, 1)
	wf := submission.NewWorkflow(c.Config.SubmitTimeout.Duration, func(o *submission.Outcome) {
		rec, err := history.FromOutcome(cliBoardID, o)
		if err == nil {
			err = c.History.Record(rec)
		}
		if err != nil {
			c.Logger.Warn("could not record submission", "error", err)
		}
		completed <- o
	})
	if err := wf.Prepare(task, body); err != nil {
		exitError("%v", err)
	}

	_, err = wf.Send(ctx, client, evalID, session.SessionID)
	if errors.Is(err, submission.ErrTimeout) {
		color.Yellow("No response within %s, waiting for the server...", c.Config.SubmitTimeout.Duration)
	}
	out := <-completed

	printOutcome(out)
	if out.Err() != nil {
		os.Exit(1)
	}
}

func printOutcome(o *submission.Outcome) {
	took := o.FinishedAt.Sub(o.StartedAt).Round(time.Millisecond)
	if err := o.Err(); err != nil {
		color.Red("Submission failed after %s: %v", took, err)
		return
	}
	color.Green("Submitted in %s", took)
	if o.Response != nil {
		fmt.Printf("Status: %d %s\n", o.Response.Status, o.Response.StatusText)
		if len(o.Response.Data) > 0 {
			fmt.Printf("Response: %s\n", o.Response.Data)
		}
	}
	if o.Late {
		color.Yellow("The response arrived after the submit timeout")
	}
}
