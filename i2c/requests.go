package i2c

type Response struct {
	IsWrite       bool // was the request a read or write?
	DeviceAddress uint8
	Offset        int
	Data          []byte // the data that was read or written
}

type Read struct {
	DeviceAddress uint8
	Offset        int
	Length        int
	Completion    func(Response)
}

type Write struct {
	DeviceAddress uint8
	Offset        int
	Data          []byte
	Completion    func(Response)
}
