package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fulfillment-line/internal/types"
)

// NewStatusCommand 显示生产线状态
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stations, queues and the last alert",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.client.State(cmd.Context())
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			return writeStatus(cmd.OutOrStdout(), snap)
		},
	}
}

// NewPauseCommand 暂停工站
func NewPauseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <station>",
		Short: "Pause a station; its queued orders wait until it resumes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseStation(args[0])
			if err != nil {
				return err
			}
			st, err := opts.client.Pause(cmd.Context(), idx)
			if err != nil {
				return err
			}
			return writeStation(cmd.OutOrStdout(), opts.Format, st)
		},
	}
}

// NewResumeCommand 恢复工站
func NewResumeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <station>",
		Short: "Resume a paused station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseStation(args[0])
			if err != nil {
				return err
			}
			st, err := opts.client.Resume(cmd.Context(), idx)
			if err != nil {
				return err
			}
			return writeStation(cmd.OutOrStdout(), opts.Format, st)
		},
	}
}

// NewStockCommand 修改库存
func NewStockCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stock <station> <ingredient> <value>",
		Short: "Set one ingredient level at a station",
		Long: `Set one ingredient level at a station.

Ingredients: pan, tomate, cebolla, lechuga, queso, carne (or their index 0-5).

Example:
  linectl stock 0 pan 20`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseStation(args[0])
			if err != nil {
				return err
			}
			k, err := types.ParseIngredient(args[1])
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[2], err)
			}
			st, err := opts.client.SetInventory(cmd.Context(), idx, k.String(), value)
			if err != nil {
				return err
			}
			return writeStation(cmd.OutOrStdout(), opts.Format, st)
		},
	}
}

// NewOrderCommand 提交手动订单
func NewOrderCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "order <requirement>",
		Short: "Submit an order, e.g. 1,0,1,1,1,1 or pan,queso,carne",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseRequirement(args[0])
			if err != nil {
				return err
			}
			orders, err := opts.client.SubmitOrder(cmd.Context(), req.Ints())
			if err != nil {
				return err
			}
			return writeOrders(cmd.OutOrStdout(), opts.Format, orders)
		},
	}
}

// NewRandomCommand 提交随机订单
func NewRandomCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "random <count>",
		Short: "Submit random orders (pan and carne are always required)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid count %q", args[0])
			}
			orders, err := opts.client.SubmitRandom(cmd.Context(), n)
			if err != nil {
				return err
			}
			return writeOrders(cmd.OutOrStdout(), opts.Format, orders)
		},
	}
}

func parseStation(s string) (int, error) {
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 0 || idx >= types.MaxStations {
		return 0, fmt.Errorf("invalid station %q", s)
	}
	return idx, nil
}

// parseRequirement 接受 6 个 0/1 或食材名称列表
func parseRequirement(s string) (types.Requirement, error) {
	parts := strings.Split(s, ",")
	ints := make([]int, 0, len(parts))
	numeric := true
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			numeric = false
			break
		}
		ints = append(ints, v)
	}
	if numeric {
		return types.RequirementFromInts(ints)
	}

	var req types.Requirement
	for _, p := range parts {
		k, err := types.ParseIngredient(p)
		if err != nil {
			return req, err
		}
		req[k] = true
	}
	return req, nil
}
