package consts

import "openbook-cli-sol/internal/types"

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	// Programs
	SystemProgramStr          = "11111111111111111111111111111111"
	TokenProgramStr           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgramStr = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	SysvarRentStr             = "SysvarRent111111111111111111111111111111111"

	// DEX: OpenBook v1 / Serum v3（同一套 DEX 程序代码）
	OpenBookV1ProgramStr = "srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX"
	SerumV3ProgramStr    = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

	// 默认市场：JLP/USDC
	DefaultMarketStr = "8BnEgHoWFysVcuFFX7QztDmzuH8r5ZFvyP3sYwn1XTh6"

	WSOLMintStr = "So11111111111111111111111111111111111111112"
	USDCMintStr = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

var (
	SystemProgram          = types.PubkeyFromBase58(SystemProgramStr)
	TokenProgram           = types.PubkeyFromBase58(TokenProgramStr)
	AssociatedTokenProgram = types.PubkeyFromBase58(AssociatedTokenProgramStr)
	SysvarRent             = types.PubkeyFromBase58(SysvarRentStr)

	OpenBookV1Program = types.PubkeyFromBase58(OpenBookV1ProgramStr)
	SerumV3Program    = types.PubkeyFromBase58(SerumV3ProgramStr)

	WSOLMint = types.PubkeyFromBase58(WSOLMintStr)
	USDCMint = types.PubkeyFromBase58(USDCMintStr)
)
