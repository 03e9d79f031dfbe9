package main

import (
	"openbook-cli-sol/internal/config"
	"openbook-cli-sol/internal/consts"
	"openbook-cli-sol/internal/logic/core"
	"openbook-cli-sol/internal/logic/dispatcher"
	"openbook-cli-sol/internal/pkg/logger"
	"openbook-cli-sol/internal/svc"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

// runFunc 执行已校验的 Intent，测试中可替换
type runFunc func(cmd *cobra.Command, intent dispatcher.Intent) error

type rootOptions struct {
	marketID   string
	programID  string
	configFile string
	verbose    int

	run runFunc
}

func newRootCommand() *cobra.Command {
	o := &rootOptions{}
	o.run = o.execute
	return o.command()
}

func (o *rootOptions) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "obcli",
		Short:         "OpenBook v1 market operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.marketID, "market-id", "m", consts.DefaultMarketStr, "market address")
	pf.StringVar(&o.programID, "program-id", consts.OpenBookV1ProgramStr, "DEX program id")
	pf.CountVarP(&o.verbose, "verbose", "v", "verbosity (-v debug, -vv debug with caller)")
	pf.StringVarP(&o.configFile, "config", "f", "", "config file")

	root.AddCommand(
		o.simpleCommand("info", "Fetch market info and the current open orders account", dispatcher.Info{}),
		o.simpleCommand("event-queue", "Show event queue header and whether a crank is needed", dispatcher.EventQueueStatus{}),
		o.simpleCommand("load-orders", "Load the open orders of the configured account", dispatcher.LoadOrders{}),
		o.simpleCommand("find-open-orders", "Find open orders accounts owned by the wallet", dispatcher.FindOpenOrders{}),
		o.placeCommand(),
		o.cancelCommand(),
		o.settleCommand(),
		o.matchCommand(),
		o.cancelSettlePlaceCommand(),
		o.cancelSettlePlaceBidCommand(),
		o.cancelSettlePlaceAskCommand(),
		o.consumeCommand("consume", "Consume events for the given or discovered open orders accounts", false),
		o.consumeCommand("consume-permissioned", "Consume events with the crank authority", true),
	)
	return root
}

// dispatch 先做本地校验再进入执行流程
func (o *rootOptions) dispatch(cmd *cobra.Command, intent dispatcher.Intent) error {
	if err := intent.Validate(); err != nil {
		return err
	}
	return o.run(cmd, intent)
}

// execute 加载配置、初始化日志并执行 Intent
func (o *rootOptions) execute(cmd *cobra.Command, intent dispatcher.Intent) error {
	c, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}

	logOpt := c.LogConf.ToLogOption()
	logOpt.Caller = o.verbose >= 2
	if err := logger.Init(logOpt); err != nil {
		return err
	}
	if o.verbose > 0 {
		logger.SetLevel(zapcore.DebugLevel)
	}

	ctx := cmd.Context()
	svcCtx, err := svc.NewServiceContext(ctx, c, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer svcCtx.Close()

	return svcCtx.Dispatcher.Dispatch(ctx, intent)
}

// loadConfig 命令行显式指定的市场参数覆盖配置文件
func (o *rootOptions) loadConfig(cmd *cobra.Command) (config.CliConfig, error) {
	c, err := config.Load(o.configFile)
	if err != nil {
		return c, err
	}
	flags := cmd.Flags()
	if flags.Changed("market-id") || c.MarketConf.MarketID == "" {
		c.MarketConf.MarketID = o.marketID
	}
	if flags.Changed("program-id") || c.MarketConf.ProgramID == "" {
		c.MarketConf.ProgramID = o.programID
	}
	return c, nil
}

func (o *rootOptions) simpleCommand(use, short string, intent dispatcher.Intent) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.dispatch(cmd, intent)
		},
	}
}

func (o *rootOptions) placeCommand() *cobra.Command {
	var (
		in   dispatcher.Place
		side string
	)
	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place a limit order offset from the target price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := core.ParseSide(side)
			if err != nil {
				return err
			}
			in.Side = s
			return o.dispatch(cmd, in)
		},
	}
	f := cmd.Flags()
	f.Float64VarP(&in.TargetAmountQuote, "target-amount-quote", "t", 0, "order size in quote units")
	f.StringVarP(&side, "side", "s", "", "bid or ask")
	f.Float64VarP(&in.BestOffsetUsdc, "best-offset-usdc", "b", 0, "price offset from the target")
	f.BoolVarP(&in.Execute, "execute", "e", false, "submit instead of printing instructions")
	f.Float64VarP(&in.PriceTarget, "price-target", "p", 0, "target price")
	markRequired(cmd, "target-amount-quote", "side", "best-offset-usdc", "price-target")
	return cmd
}

func (o *rootOptions) cancelCommand() *cobra.Command {
	var in dispatcher.Cancel
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel all open orders of the open orders account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.dispatch(cmd, in)
		},
	}
	cmd.Flags().BoolVarP(&in.Execute, "execute", "e", false, "submit instead of printing instructions")
	return cmd
}

func (o *rootOptions) settleCommand() *cobra.Command {
	var in dispatcher.Settle
	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle free balances back to the wallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.dispatch(cmd, in)
		},
	}
	cmd.Flags().BoolVarP(&in.Execute, "execute", "e", false, "submit instead of printing instructions")
	return cmd
}

func (o *rootOptions) matchCommand() *cobra.Command {
	var in dispatcher.Match
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match crossing orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.dispatch(cmd, in)
		},
	}
	cmd.Flags().Uint16VarP(&in.Limit, "limit", "l", 0, "max orders to match")
	markRequired(cmd, "limit")
	return cmd
}

func (o *rootOptions) cancelSettlePlaceCommand() *cobra.Command {
	var in dispatcher.CancelSettlePlace
	cmd := &cobra.Command{
		Use:   "cancel-settle-place",
		Short: "Cancel, settle and place a bid and an ask in one transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.dispatch(cmd, in)
		},
	}
	f := cmd.Flags()
	f.Float64VarP(&in.UsdcAskTarget, "usdc-ask-target", "u", 0, "ask size in quote units")
	f.Float64VarP(&in.TargetUsdcBid, "target-usdc-bid", "t", 0, "bid size in quote units")
	f.Float64VarP(&in.PriceJlpUsdcBid, "price-jlp-usdc-bid", "p", 0, "bid price")
	f.Float64VarP(&in.AskPriceJlpUsdc, "ask-price-jlp-usdc", "a", 0, "ask price")
	markRequired(cmd, "usdc-ask-target", "target-usdc-bid", "price-jlp-usdc-bid", "ask-price-jlp-usdc")
	return cmd
}

func (o *rootOptions) cancelSettlePlaceBidCommand() *cobra.Command {
	var in dispatcher.CancelSettlePlaceBid
	cmd := &cobra.Command{
		Use:   "cancel-settle-place-bid",
		Short: "Cancel, settle and place a bid in one transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.dispatch(cmd, in)
		},
	}
	f := cmd.Flags()
	f.Float64VarP(&in.TargetSizeUsdcBid, "target-size-usdc-bid", "t", 0, "bid size in quote units")
	f.Float64VarP(&in.BidPriceJlpUsdc, "bid-price-jlp-usdc", "b", 0, "bid price")
	markRequired(cmd, "target-size-usdc-bid", "bid-price-jlp-usdc")
	return cmd
}

func (o *rootOptions) cancelSettlePlaceAskCommand() *cobra.Command {
	var in dispatcher.CancelSettlePlaceAsk
	cmd := &cobra.Command{
		Use:   "cancel-settle-place-ask",
		Short: "Cancel, settle and place an ask in one transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.dispatch(cmd, in)
		},
	}
	f := cmd.Flags()
	f.Float64VarP(&in.TargetSizeUsdcAsk, "target-size-usdc-ask", "t", 0, "ask size in quote units")
	f.Float64VarP(&in.AskPriceJlpUsdc, "ask-price-jlp-usdc", "a", 0, "ask price")
	markRequired(cmd, "target-size-usdc-ask", "ask-price-jlp-usdc")
	return cmd
}

func (o *rootOptions) consumeCommand(use, short string, permissioned bool) *cobra.Command {
	var (
		limit      uint16
		openOrders []string
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if permissioned {
				return o.dispatch(cmd, dispatcher.ConsumePermissioned{Limit: limit, OpenOrders: openOrders})
			}
			return o.dispatch(cmd, dispatcher.Consume{Limit: limit, OpenOrders: openOrders})
		},
	}
	f := cmd.Flags()
	f.Uint16VarP(&limit, "limit", "l", 0, "max events to consume")
	f.StringSliceVar(&openOrders, "open-orders", nil, "open orders accounts (comma separated or repeated)")
	markRequired(cmd, "limit")
	return cmd
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}
