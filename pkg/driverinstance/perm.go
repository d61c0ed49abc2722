package driverinstance

import (
	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

// parsePerm decodes a manifest's "perms" string (any combination of
// "r"/"w"/"x", default "rw") into a Perm bitmask.
func parsePerm(s string) (sdmodel.Perm, error) {
	if s == "" {
		return sdmodel.PermRW, nil
	}
	var p sdmodel.Perm
	for _, c := range s {
		switch c {
		case 'r':
			p |= sdmodel.PermR
		case 'w':
			p |= sdmodel.PermW
		case 'x':
			p |= sdmodel.PermX
		default:
			return 0, sdferr.New(sdferr.KindInvalidConfig, "invalid perm character %q in %q", c, s)
		}
	}
	return p, nil
}

// decodeTrigger applies the GIC interrupt-flags cell convention
// (IRQ_TYPE_EDGE_* = 1,2; IRQ_TYPE_LEVEL_* = 4,8) to classify a raw
// interrupts-cell value.
func decodeTrigger(cell uint32) sdmodel.Trigger {
	if cell&0x3 != 0 {
		return sdmodel.TriggerEdge
	}
	return sdmodel.TriggerLevel
}
