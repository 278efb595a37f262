package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-xeo/internal/log"
	"github.com/teslashibe/go-xeo/pkg/dispatch"
	"github.com/teslashibe/go-xeo/pkg/state"
	"github.com/teslashibe/go-xeo/pkg/tools"
)

func newParseCmd(root *rootOptions) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Extract and validate tool calls from model output",
		Long: "Reads model output from a file or stdin, extracts tool-call candidates, " +
			"validates them against the panel catalog and prints the result as JSON. " +
			"With --apply the valid calls are dispatched against a fresh factory state.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := root.load(); err != nil {
				return err
			}
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			ex := tools.NewExtractor(tools.WithLogger(log.Component("parse")))
			reg := tools.DefaultRegistry()
			calls, errs := tools.Parse(ex, reg, text)

			out := parseOutput{
				Candidates: ex.Extract(text),
				Calls:      calls,
				Text:       ex.Strip(text),
			}
			for _, err := range errs {
				out.Rejected = append(out.Rejected, err.Error())
			}
			if apply {
				store := state.NewDefaultStore()
				d := dispatch.New(store, dispatch.WithLogger(log.L()))
				out.Results = d.DispatchAll(cmd.Context(), calls)
				out.Devices = store.Devices()
				out.Settings = store.Settings()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "dispatch valid calls against factory state and print the resulting state")
	return cmd
}

type parseOutput struct {
	Candidates []tools.Candidate `json:"candidates"`
	Calls      []tools.Call      `json:"calls"`
	Rejected   []string          `json:"rejected,omitempty"`
	Text       string            `json:"text"`
	Results    []dispatch.Result `json:"results,omitempty"`
	Devices    []state.Device    `json:"devices,omitempty"`
	Settings   []state.Setting   `json:"settings,omitempty"`
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("empty input")
	}
	return string(data), nil
}
