package usbiss

const (
	cmdI2CAD1  = 0x55 // read/write with a one byte register address
	cmdI2CAD2  = 0x56 // read/write with a two byte register address
	cmdI2CTest = 0x58 // check for a device acknowledging its address
	cmdISS     = 0x5A

	issVersion = 0x01
	issMode    = 0x02

	modeI2CH100KHz = 0x60

	// transfer limits of the adapter's 64 byte buffer:
	maxAD1 = 60
	maxAD2 = 59

	moduleID = 0x07
)

func addrWrite(deviceAddress uint8) byte { return deviceAddress << 1 }
func addrRead(deviceAddress uint8) byte  { return deviceAddress<<1 | 1 }

// readFrame builds a single register read of at most maxAD1/maxAD2 bytes.
func readFrame(deviceAddress uint8, offset, n int) []byte {
	if offset < 0x100 {
		return []byte{cmdI2CAD1, addrRead(deviceAddress), byte(offset), byte(n)}
	}
	return []byte{cmdI2CAD2, addrRead(deviceAddress), byte(offset >> 8), byte(offset), byte(n)}
}

func writeFrame(deviceAddress uint8, offset int, data []byte) []byte {
	var sb []byte
	if offset < 0x100 {
		sb = make([]byte, 0, 4+len(data))
		sb = append(sb, cmdI2CAD1, addrWrite(deviceAddress), byte(offset), byte(len(data)))
	} else {
		sb = make([]byte, 0, 5+len(data))
		sb = append(sb, cmdI2CAD2, addrWrite(deviceAddress), byte(offset>>8), byte(offset), byte(len(data)))
	}
	return append(sb, data...)
}

// batchSize returns the largest transfer starting at offset.
func batchSize(offset, remaining int) int {
	max := maxAD1
	if offset >= 0x100 {
		max = maxAD2
	}
	if remaining < max {
		return remaining
	}
	return max
}
