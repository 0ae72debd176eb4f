package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mattr/internal/session"
	"mattr/internal/types"
)

var askJSON bool

// askCmd answers a single question
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one moral question and print the analysis",
	Long: `Sends one question to the reasoning engine and prints the short answer
followed by the three framework analyses and the synthesis.

Example:
  mattr ask "Should I buy a diesel car?"
  mattr ask --json Is it wrong to lie to protect a friend?`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the analysis result as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := joinArgs(args)
	if question == "" {
		return errors.New("question must not be empty")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conv, err := newConversation(ctx)
	if err != nil {
		return err
	}
	defer conv.Close()

	logger.Debug("asking", zap.String("question", question))
	turn, ok := conv.AppendUserTurn(ctx, question)
	if !ok {
		return errors.New("question rejected")
	}
	if turn.Data == nil {
		logger.Warn("reasoning engine unavailable", zap.String("turn", turn.ID))
	}

	out := cmd.OutOrStdout()
	if askJSON {
		return printResultJSON(out, turn)
	}
	printTurn(out, turn)
	return nil
}

// printResultJSON prints the turn's analysis result. Turns without data
// print their content as the short answer.
func printResultJSON(w io.Writer, turn session.Turn) error {
	result := turn.Data
	if result == nil {
		result = &types.AnalysisResult{ShortAnswer: turn.Content}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

var (
	headingColor    = color.New(color.Bold)
	ruleColor       = color.New(color.FgBlue, color.Bold)
	kantianColor    = color.New(color.FgGreen, color.Bold)
	scanlonianColor = color.New(color.FgYellow, color.Bold)
	mutedColor      = color.New(color.Faint)
)

func printTurn(w io.Writer, turn session.Turn) {
	if turn.Data == nil {
		fmt.Fprintln(w, turn.Content)
		return
	}

	data := turn.Data
	headingColor.Fprintln(w, data.ShortAnswer)

	if data.NeedsClarification {
		question := strings.TrimSpace(data.ClarificationQuestion)
		if question == "" {
			question = "I need a bit more detail to provide an accurate ethical judgment."
		}
		fmt.Fprintln(w)
		scanlonianColor.Fprintln(w, "Clarification Needed")
		fmt.Fprintln(w, indent(question))
		fmt.Fprintln(w)
		mutedColor.Fprintln(w, "Add the missing detail to your question and ask again, or use the interactive chat to skip.")
		return
	}
	if data.Analysis == nil {
		return
	}

	sections := []struct {
		title string
		c     *color.Color
		text  string
	}{
		{"Rule Consequentialism", ruleColor, data.Analysis.RuleConsequentialism},
		{"Kantian Contractualism", kantianColor, data.Analysis.KantianContractualism},
		{"Scanlonian Contractualism", scanlonianColor, data.Analysis.ScanlonianContractualism},
		{"Final Synthesis", headingColor, data.Analysis.Synthesis},
	}
	for _, s := range sections {
		fmt.Fprintln(w)
		s.c.Fprintln(w, s.title)
		fmt.Fprintln(w, indent(s.text))
	}
}

func indent(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
