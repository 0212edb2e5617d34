package rpcbridge

type DeviceDescriptor struct {
	Address string `json:"address"`
}

func (d DeviceDescriptor) GetId() string { return d.Address }

func (d DeviceDescriptor) GetDisplayName() string { return "gRPC bridge " + d.Address }
