package consts

import "time"

const (
	// CrankDelay 交易确认后等待 crank（撮合/结算）完成再查询交易详情
	CrankDelay = 50 * time.Second

	// 批量撤单：单次调用最多处理的指令数，以及每笔交易最多打包的指令数
	MaxCancelOrders      = 5
	MaxCancelOrdersPerTx = 5

	// FindOpenOrdersLimit 查询 owner 的 open orders 账户时的上限
	FindOpenOrdersLimit = 1000
)
