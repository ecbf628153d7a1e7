package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fulfillment-line/internal/client"
)

// RootOptions 所有子命令共享的参数
type RootOptions struct {
	Addr   string
	Format string // "json" | "text"
	client *client.Client
}

// ValidFormats 支持的输出格式
var ValidFormats = []string{"text", "json"}

// NewRootCommand 创建 linectl 根命令
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "linectl",
		Short:         "Control a running line-manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 地址优先级：命令行 > LINECTL_ADDR > 默认值
			v := viper.New()
			v.SetEnvPrefix("LINECTL")
			v.AutomaticEnv()
			if err := v.BindPFlag("addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			opts.Addr = v.GetString("addr")

			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.client = client.New(opts.Addr, slog.New(slog.NewTextHandler(io.Discard, nil)))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "http://localhost:8080", "line-manager address")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewPauseCommand(opts))
	cmd.AddCommand(NewResumeCommand(opts))
	cmd.AddCommand(NewStockCommand(opts))
	cmd.AddCommand(NewOrderCommand(opts))
	cmd.AddCommand(NewRandomCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == strings.ToLower(format) {
			return true
		}
	}
	return false
}
