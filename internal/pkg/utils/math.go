package utils

import (
	"math"
	"math/big"
	"strconv"

	"golang.org/x/exp/constraints"
)

// Float64Round2 对 float64 保留最多两位小数，适用于余额、统计指标展示
func Float64Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func Pow10(n uint8) float64 {
	switch n {
	case 0:
		return 1
	case 6:
		return 1e6
	case 8:
		return 1e8
	case 9:
		return 1e9
	default:
		return math.Pow10(int(n))
	}
}

// AmountToFloat64 将原始整数金额字符串按 decimals 转换为展示单位
func AmountToFloat64(value string, decimals uint8) float64 {
	if i, err := strconv.ParseUint(value, 10, 64); err == nil {
		return float64(i) / Pow10(decimals)
	}

	bi, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return 0
	}

	bf := new(big.Float).SetInt(bi)
	bf.Quo(bf, new(big.Float).SetFloat64(Pow10(decimals)))

	result, _ := bf.Float64()
	return result
}

// RawAmountToFloat64 将原始整数金额按 decimals 转换为展示单位
func RawAmountToFloat64(value uint64, decimals uint8) float64 {
	return float64(value) / Pow10(decimals)
}

// Clamp 将 v 限制在 [lo, hi] 区间
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
