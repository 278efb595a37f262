package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-xeo/pkg/prompt"
	"github.com/teslashibe/go-xeo/pkg/tools"
)

func newPromptCmd() *cobra.Command {
	var (
		gesture    string
		confidence float64
		gazeX      float64
		gazeY      float64
		noTools    bool
	)
	cmd := &cobra.Command{
		Use:       "prompt <chat|analyze|intent> [text]",
		Short:     "Print a prompt in raw Phi-4 token form",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"chat", "analyze", "intent"},
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := tools.DefaultRegistry().CatalogJSON()
			if err != nil {
				return err
			}
			a := prompt.New(catalog)

			var p prompt.Prompt
			switch args[0] {
			case "chat":
				if len(args) < 2 {
					return fmt.Errorf("chat needs the user text")
				}
				p = a.Chat(args[1])
			case "analyze":
				p = a.AnalyzeUI()
				noTools = true
			case "intent":
				ic := prompt.IntentContext{Gesture: gesture}
				if len(args) == 2 {
					ic.UIAnalysis = args[1]
				}
				if cmd.Flags().Changed("confidence") {
					ic.Confidence = &confidence
				}
				if cmd.Flags().Changed("gaze-x") || cmd.Flags().Changed("gaze-y") {
					ic.Gaze = &prompt.Gaze{X: gazeX, Y: gazeY}
				}
				p = a.Intent(ic)
			default:
				return fmt.Errorf("unknown prompt kind %q (want %s)", args[0], strings.Join(cmd.ValidArgs, ", "))
			}
			if !noTools {
				p = a.WithTools(p)
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Render())
			return nil
		},
	}
	cmd.Flags().StringVar(&gesture, "gesture", "unknown", "gesture name for intent prompts")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "gesture confidence in [0,1]")
	cmd.Flags().Float64Var(&gazeX, "gaze-x", 0.5, "gaze x in [0,1]")
	cmd.Flags().Float64Var(&gazeY, "gaze-y", 0.5, "gaze y in [0,1]")
	cmd.Flags().BoolVar(&noTools, "no-tools", false, "omit the tool catalog")
	return cmd
}
