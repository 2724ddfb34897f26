package smartctl

import "fmt"

// Fault bits reported by ?FF.
const (
	FaultOverheat     uint8 = 1 << iota
	FaultOvervoltage
	FaultUndervoltage
	FaultShort
	FaultEStop
	FaultScript
	FaultMOSFET
	FaultConfig
)

// Status bits reported by ?FS.
const (
	StatusSerial uint8 = 1 << iota
	StatusPulse
	StatusAnalog
	StatusPowerOff
	StatusStall
	StatusAtLimit
	StatusUnused
	StatusScript
)

var faultNames = [8]string{
	"Overheat",
	"Overvoltage",
	"Undervoltage",
	"Short circuit",
	"Emergency stop",
	"Script fault",
	"MOSFET failure",
	"Startup configuration fault",
}

var statusNames = [8]string{
	"Serial mode",
	"Pulse mode",
	"Analog mode",
	"Power stage off",
	"Stall detected",
	"At limit",
	"Unused",
	"MicroBasic script running",
}

func describe(bits uint8, names *[8]string) []string {
	var lines []string
	for n := uint(0); n < 8; n++ {
		if bit := uint8(1) << n; bits&bit != 0 {
			lines = append(lines, fmt.Sprintf("%d %s", bit, names[n]))
		}
	}
	return lines
}

// DescribeFault lists "<bit> <name>" for each fault bit set.
func DescribeFault(bits uint8) []string {
	return describe(bits, &faultNames)
}

// DescribeStatus lists "<bit> <name>" for each status bit set.
func DescribeStatus(bits uint8) []string {
	return describe(bits, &statusNames)
}
