package types

import "errors"

var (
	// ErrInvalidInput 用户输入不合法（地址、价格、方向等），在任何网络调用之前返回
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoOpenOrders 当前 owner 在该市场没有可用的 open orders 账户
	ErrNoOpenOrders = errors.New("no open orders account for owner")
)
