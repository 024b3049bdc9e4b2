package stubs

import "tier1/pkg/helpers"

// Field offsets of the scratch record the reference helpers share. One
// counter word per helper comes first.
const (
	offCounters      = 0
	offFailMask      = offCounters + int32(helpers.NumKinds)*8
	offInterrupt     = offFailMask + 8
	offFrozen        = offInterrupt + 8
	offStringResult  = offFrozen + 8
	offLiterals      = offStringResult + 8
	offLiteralCount  = offLiterals + 8
	offLastCount     = offLiteralCount + 8
	offLastObject    = offLastCount + 8
	offLastPointer   = offLastObject + 8
	offLastCallFrame = offLastPointer + 8
	offLastScope     = offLastCallFrame + 8
	offLastVM        = offLastScope + 8

	scratchSize = int(offLastVM) + 8
)

func counter(k helpers.Kind) int32 {
	return offCounters + int32(k)*8
}
