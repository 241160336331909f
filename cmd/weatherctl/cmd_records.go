package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-record-service/internal/handler"
)

func newListCmd(a *app) *cobra.Command {
	var region, condition string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List weather records",
		Long:  `List weather records, newest id first, optionally filtered by region and condition substrings.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := map[string]string{}
			if region != "" {
				query["region"] = region
			}
			if condition != "" {
				query["weatherCondition"] = condition
			}
			return a.run(cmd, handler.Request{Method: http.MethodGet, QueryStringParameters: query})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "case-insensitive region substring")
	cmd.Flags().StringVar(&condition, "condition", "", "case-insensitive weather condition substring")
	return cmd
}

func newCreateCmd(a *app) *cobra.Command {
	var region, condition, date string
	var temperature float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a weather record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(map[string]interface{}{
				"region":           region,
				"weatherCondition": condition,
				"temperature":      temperature,
				"date":             date,
			})
			if err != nil {
				return err
			}
			return a.run(cmd, handler.Request{Method: http.MethodPost, Body: string(body)})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region name")
	cmd.Flags().StringVar(&condition, "condition", "", "weather condition")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "temperature, -100 to 100")
	cmd.Flags().StringVar(&date, "date", "", "observation date, e.g. 2024-03-01 or RFC 3339")
	_ = cmd.MarkFlagRequired("region")
	_ = cmd.MarkFlagRequired("condition")
	_ = cmd.MarkFlagRequired("temperature")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a weather record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return err
			}
			return a.run(cmd, handler.Request{
				Method:         http.MethodDelete,
				PathParameters: map[string]string{"id": args[0]},
			})
		},
	}
}
