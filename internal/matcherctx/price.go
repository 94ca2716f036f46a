package matcherctx

import "math/big"

// ComputeExecPrice applies a basis-point spread to a base price:
// floor(basePrice * (10_000 + spreadBps) / 10_000). The product is
// taken at arbitrary width, so the only failure mode is the final
// narrowing: ErrArithmeticOverflow when the divided result exceeds
// the u64 range. spreadBps of zero is the exact identity.
func ComputeExecPrice(basePrice, spreadBps uint64) (uint64, error) {
	if spreadBps == 0 {
		return basePrice, nil
	}

	denom := new(big.Int).SetUint64(BpsDenom)
	factor := new(big.Int).SetUint64(spreadBps)
	factor.Add(factor, denom)

	out := new(big.Int).SetUint64(basePrice)
	out.Mul(out, factor)
	out.Div(out, denom)
	if !out.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return out.Uint64(), nil
}
