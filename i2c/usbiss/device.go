package usbiss

import "fmt"

type DeviceDescriptor struct {
	Port         string `json:"port"`
	VID          string `json:"vid"`
	PID          string `json:"pid"`
	SerialNumber string `json:"serialNumber"`
}

func (d DeviceDescriptor) GetId() string { return d.Port }

func (d DeviceDescriptor) GetDisplayName() string {
	if d.SerialNumber != "" {
		return fmt.Sprintf("USB-ISS %s (%s)", d.Port, d.SerialNumber)
	}
	return fmt.Sprintf("USB-ISS %s (%s:%s)", d.Port, d.VID, d.PID)
}
