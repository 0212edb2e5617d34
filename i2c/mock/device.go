package mock

type DeviceDescriptor struct {
	Name string `json:"name"`
}

func (d DeviceDescriptor) GetId() string { return "mock:" + d.Name }

func (d DeviceDescriptor) GetDisplayName() string {
	return "Mock bus " + d.Name
}
