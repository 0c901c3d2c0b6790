package uapi

import "github.com/qcrqa/crqa-accel/internal/constants"

// RegisterOffset identifies one addressable field in the per-field
// register window (spec §4.3.1).
type RegisterOffset uint32

const (
	RegMagic     RegisterOffset = constants.RegMagicOffset
	RegR         RegisterOffset = constants.RegROffset
	RegSig1Index RegisterOffset = constants.RegSig1IndexOffset
	RegSig1Value RegisterOffset = constants.RegSig1ValueOffset
	RegSig2Index RegisterOffset = constants.RegSig2IndexOffset
	RegSig2Value RegisterOffset = constants.RegSig2ValueOffset
	RegOpcode    RegisterOffset = constants.RegOpcodeOffset
	RegTrigger   RegisterOffset = constants.RegTriggerOffset
)

// RegMetricOffset returns the offset of the i'th metric (0-based,
// 0 == epsilon already covered by RegTrigger's return value; i in
// [0,6] covers the remaining seven metrics at 0x48..0x78).
func RegMetricOffset(i int) RegisterOffset {
	return RegisterOffset(constants.RegMetricsOffset + i*8)
}

// Width returns the byte width of the register at offset, per the
// table in spec §4.3.1. Unknown offsets return 0.
func (o RegisterOffset) Width() int {
	switch o {
	case RegMagic, RegSig1Index, RegSig2Index, RegOpcode:
		return 4
	case RegR, RegSig1Value, RegSig2Value, RegTrigger:
		return 8
	default:
		if uint32(o) >= constants.RegMetricsOffset && uint32(o) < constants.RegMetricsOffset+7*8 {
			return 8
		}
		return 0
	}
}
