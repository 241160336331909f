package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-record-service/internal/handler"
)

func newInvokeCmd(a *app) *cobra.Command {
	var eventPath string
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Run a request descriptor",
		Long: `Read a request descriptor (API Gateway proxy event JSON with httpMethod,
pathParameters, queryStringParameters and body) and print the response.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if eventPath != "" && eventPath != "-" {
				f, err := os.Open(eventPath)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var req handler.Request
			if err := json.NewDecoder(r).Decode(&req); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			return a.run(cmd, req)
		},
	}
	cmd.Flags().StringVarP(&eventPath, "event", "e", "-", "event file, or - for stdin")
	return cmd
}

// run dispatches req and prints the status line and body.
func (a *app) run(cmd *cobra.Command, req handler.Request) error {
	resp, err := a.weather.Handle(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d\n%s\n", resp.StatusCode, resp.Body)
	return nil
}
