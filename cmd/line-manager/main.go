package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fulfillment-line/internal/config"
	"fulfillment-line/internal/engine"
	"fulfillment-line/internal/event"
	"fulfillment-line/internal/handlers"
	"fulfillment-line/internal/journal"
	"fulfillment-line/internal/types"
	"fulfillment-line/internal/web"
)

// main 是应用程序的主入口
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "line-manager",
		Short: "Burger fulfillment line",
		Long: `Runs a multi-station burger fulfillment line: a dispatcher routes orders from a
bounded global queue to station workers with enough ingredients, a restocker
replenishes inventory, and an HTTP API controls and displays the line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return run(cmd.Context(), cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	// 1. 初始化核心组件
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	eventBus := event.NewBus()
	line, err := engine.NewLine(cfg, eventBus, logger)
	if err != nil {
		logger.Error("无法初始化生产线", "error", err)
		return err
	}

	var orderJournal *journal.Journal
	if cfg.JournalPath != "" {
		orderJournal, err = journal.Open(cfg.JournalPath)
		if err != nil {
			logger.Error("无法打开审计日志", "error", err)
			return err
		}
		defer orderJournal.Close()
	}

	displayCtx, stopDisplay := context.WithCancel(context.Background())
	defer stopDisplay()
	hub := web.NewHub(logger)
	stateTracker := web.NewStateTracker(line.Block(), hub)
	go hub.Run(displayCtx)
	go stateTracker.Run(displayCtx)

	// 2. 注册事件处理器
	handlers.RegisterEventHandlers(eventBus, stateTracker, orderJournal, logger)

	// 3. 启动 API 服务和生产线
	var srv *http.Server
	if cfg.HTTPAddr != "" {
		srv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           web.NewServeMux(line, hub, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("API 和展示服务器启动", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("API 服务器启动失败", "error", err)
			}
		}()
	}

	// 生产线只由停机协议结束，不随信号 context 取消
	line.Start(context.Background())

	// 4. 优雅停机
	waitForShutdown(ctx, logger)
	leftover := line.Shutdown()
	report(logger, line, leftover)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("API 服务器关闭失败", "error", err)
		}
	}
	stateTracker.Refresh()
	logger.Info("生产演示结束，系统已安全退出。")
	return nil
}

// waitForShutdown 等待系统信号或 ctx 结束
func waitForShutdown(ctx context.Context, logger *slog.Logger) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	logger.Info("接收到停机信号，正在优雅关闭...")
}

// report 记录每个工站的最终状态和未处理的订单
func report(logger *slog.Logger, line *engine.Line, leftover []types.Order) {
	snap := line.Snapshot()
	for _, st := range snap.Stations {
		logger.Info("工站最终状态",
			"station", st.Index,
			"processed", st.Processed,
			"alive", st.Alive,
			"inventory", fmt.Sprint(st.Inventory),
		)
	}
	for _, o := range leftover {
		logger.Info("订单未处理", "order_id", o.ID, "requirement", o.Requirement.String())
	}
	logger.Info("停机汇总", "orders_left", len(leftover))
}
