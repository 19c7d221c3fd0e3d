package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"randomnessScope/internal/aggregate"
	"randomnessScope/internal/chain"
	"randomnessScope/internal/config"
	"randomnessScope/internal/coordinator"
	"randomnessScope/internal/model"
	"randomnessScope/internal/query"
	"randomnessScope/internal/scanner"
)

// pageOutput is the JSON shape the query command prints.
type pageOutput struct {
	Window          model.WindowInfo      `json:"window"`
	Requests        []model.RequestRecord `json:"requests"`
	TotalItems      int                   `json:"total_items"`
	CurrentPage     uint32                `json:"current_page"`
	PageSize        uint32                `json:"page_size"`
	HasNextPage     bool                  `json:"has_next_page"`
	HasPreviousPage bool                  `json:"has_previous_page"`
}

func runQuery(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Coordinator) {
		return fmt.Errorf("invalid coordinator address: %s", cfg.Coordinator)
	}

	params, err := buildQueryParams(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, common.HexToAddress(cfg.Coordinator))
	if err != nil {
		return err
	}
	defer client.Close()

	decoder, err := coordinator.NewDecoder()
	if err != nil {
		return err
	}

	windowScanner := scanner.New(client, decoder, scanner.Config{
		FetchTimeout: cfg.FetchTimeout,
	}, logger)

	engine := query.NewEngine(client, windowScanner, query.Config{
		WindowSize:   cfg.WindowSize,
		GenesisBlock: cfg.Genesis,
		MergeOptions: aggregate.Options{DeadlineOffset: cfg.DeadlineOffset},
	}, logger)

	result, err := engine.Query(ctx, params, cfg.WindowPage)
	if err != nil {
		return err
	}

	window, err := engine.WindowInfo(ctx, cfg.WindowPage)
	if err != nil {
		return err
	}

	exportedAt := time.Now()
	records := make([]model.RequestRecord, 0, len(result.Data))
	for _, request := range result.Data {
		records = append(records, model.BuildRequestRecord(request, exportedAt))
	}

	output := pageOutput{
		Window:          window,
		Requests:        records,
		TotalItems:      result.TotalItems,
		CurrentPage:     result.CurrentPage,
		PageSize:        result.PageSize,
		HasNextPage:     result.HasNextPage,
		HasPreviousPage: result.HasPreviousPage,
	}

	encoded, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))

	logger.Debug("query done",
		zap.Uint32("window_page", cfg.WindowPage),
		zap.Int("total_items", result.TotalItems),
	)

	return nil
}

func buildQueryParams(cfg config.QueryConfig) (model.QueryParams, error) {
	sortBy, err := model.ParseSortKey(cfg.SortBy)
	if err != nil {
		return model.QueryParams{}, err
	}
	sortDir, err := model.ParseSortDirection(cfg.SortDir)
	if err != nil {
		return model.QueryParams{}, err
	}

	if cfg.Requester != "" && !common.IsHexAddress(cfg.Requester) {
		return model.QueryParams{}, fmt.Errorf("invalid requester address: %s", cfg.Requester)
	}

	statuses := make([]model.RequestStatus, 0, len(cfg.Statuses))
	for _, raw := range cfg.Statuses {
		status, err := model.ParseStatus(raw)
		if err != nil {
			return model.QueryParams{}, err
		}
		statuses = append(statuses, status)
	}

	fromTS, err := config.ParseTimestamp(cfg.FromTime)
	if err != nil {
		return model.QueryParams{}, fmt.Errorf("parse from-time: %w", err)
	}
	toTS, err := config.ParseTimestamp(cfg.ToTime)
	if err != nil {
		return model.QueryParams{}, fmt.Errorf("parse to-time: %w", err)
	}

	return model.QueryParams{
		Page:     cfg.Page,
		PageSize: cfg.PageSize,
		Filters: model.Filters{
			Requester:     cfg.Requester,
			Statuses:      statuses,
			FromTimestamp: fromTS,
			ToTimestamp:   toTS,
		},
		SortBy:        sortBy,
		SortDirection: sortDir,
	}, nil
}
