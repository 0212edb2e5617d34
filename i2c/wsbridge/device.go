package wsbridge

type DeviceDescriptor struct {
	URL string `json:"url"`
}

func (d DeviceDescriptor) GetId() string { return d.URL }

func (d DeviceDescriptor) GetDisplayName() string { return "Bridge " + d.URL }
