package i2c

// Conn is a synchronous connection to a bus. Reads and writes address the memory
// of one 7-bit device at a time and are executed in the order they are called.
type Conn interface {
	ReadDeviceMemory(deviceAddress uint8, offset, length int) ([]byte, error)
	WriteDeviceMemory(deviceAddress uint8, offset int, data []byte) error

	// Probe reports whether a device acknowledges its address.
	Probe(deviceAddress uint8) (bool, error)

	// Close disconnects from the bus.
	Close() error
}
