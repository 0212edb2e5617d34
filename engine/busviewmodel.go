package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"i2cgui/i2c"
	"i2cgui/interfaces"

	"github.com/retroenv/retrogolib/log"
)

// 7-bit addresses outside this range are reserved by the bus protocol:
const (
	firstScanAddress = 0x08
	lastScanAddress  = 0x77
)

// Must be JSON serializable
type BusViewModel struct {
	commands map[string]interfaces.Command

	c       *ViewModel
	lock    sync.Mutex
	isClean bool

	Drivers     []*DriverViewModel `json:"drivers"`
	IsConnected bool               `json:"isConnected"`
	// Found lists the device addresses that answered the last scan.
	Found []string `json:"found"`
}

type DriverViewModel struct {
	namedDriver i2c.NamedDriver
	devices     []i2c.DeviceDescriptor

	Name string `json:"name"`

	DisplayName        string `json:"displayName"`
	DisplayDescription string `json:"displayDescription"`
	DisplayOrder       int    `json:"displayOrder"`

	Devices        []i2c.MarshaledDeviceDescriptor `json:"devices"`
	SelectedDevice string                          `json:"selectedDevice"`

	IsConnected bool `json:"isConnected"`
}

type BusConfiguration struct {
	Driver string `json:"driver"`
	Device string `json:"device"`
}

func (v *BusViewModel) LoadConfiguration(config *BusConfiguration) {
	if config == nil || config.Driver == "" {
		return
	}

	// Init() has already been called
	v.lock.Lock()
	dvm := v.FindNamedDriver(config.Driver)
	if dvm == nil {
		v.lock.Unlock()
		v.c.log.Warn("Configured driver not found", log.String("driver", config.Driver))
		return
	}

	var device i2c.DeviceDescriptor
	for _, dv := range dvm.devices {
		if dv.GetId() == config.Device {
			device = dv
			break
		}
	}
	if device == nil {
		v.lock.Unlock()
		v.c.log.Warn("Configured device not found",
			log.String("driver", config.Driver),
			log.String("device", config.Device))
		return
	}

	// connect to driver and device:
	dvm.SelectedDevice = device.GetId()
	pair := i2c.NamedDriverDevicePair{NamedDriver: dvm.namedDriver, Device: device}
	v.lock.Unlock()

	v.c.BusConnected(pair)
}

func (v *BusViewModel) SaveConfiguration(config *BusConfiguration) {
	if config == nil {
		return
	}

	defer v.lock.Unlock()
	v.lock.Lock()

	for _, d := range v.Drivers {
		if d.IsConnected {
			config.Driver = d.Name
			config.Device = d.SelectedDevice
			return
		}
	}

	config.Driver = ""
	config.Device = ""
}

func NewBusViewModel(c *ViewModel) *BusViewModel {
	v := &BusViewModel{c: c, Found: []string{}}

	// supported commands:
	v.commands = map[string]interfaces.Command{
		"connect":    &ConnectCommandExecutor{v},
		"disconnect": &DisconnectCommandExecutor{v},
		"scan":       &ScanCommandExecutor{v},
	}

	return v
}

func (v *BusViewModel) IsDirty() bool {
	defer v.lock.Unlock()
	v.lock.Lock()
	return !v.isClean
}

func (v *BusViewModel) ClearDirty() {
	defer v.lock.Unlock()
	v.lock.Lock()
	v.isClean = true
}

func (v *BusViewModel) MarkDirty() {
	v.lock.Lock()
	v.isClean = false
	v.lock.Unlock()

	v.c.NotifyViewOf("bus", v)
}

// ViewModel returns a copy safe to marshal while detection continues.
func (v *BusViewModel) ViewModel() interface{} {
	defer v.lock.Unlock()
	v.lock.Lock()

	cp := &BusViewModel{
		Drivers:     make([]*DriverViewModel, len(v.Drivers)),
		IsConnected: v.IsConnected,
		Found:       append([]string{}, v.Found...),
	}
	for i, d := range v.Drivers {
		dc := *d
		dc.Devices = append([]i2c.MarshaledDeviceDescriptor{}, d.Devices...)
		cp.Drivers[i] = &dc
	}
	return cp
}

func detect(logger *log.Logger, dv i2c.NamedDriver) []i2c.DeviceDescriptor {
	devices, err := dv.Driver.Detect()
	if err != nil {
		logger.Warn("Could not detect devices", log.String("driver", dv.Name), log.Err(err))
		return []i2c.DeviceDescriptor{}
	}
	return devices
}

func marshalDevices(devices []i2c.DeviceDescriptor) []i2c.MarshaledDeviceDescriptor {
	m := make([]i2c.MarshaledDeviceDescriptor, len(devices))
	for i, dv := range devices {
		m[i] = i2c.MarshalDeviceDescriptor(dv)
	}
	return m
}

func (v *BusViewModel) Init() {
	dvs := i2c.Drivers()
	drivers := make([]*DriverViewModel, len(dvs))
	for i, dv := range dvs {
		devices := detect(v.c.log, dv)
		drivers[i] = &DriverViewModel{
			namedDriver:        dv,
			devices:            devices,
			Name:               dv.Name,
			DisplayOrder:       dv.Driver.DisplayOrder(),
			DisplayName:        dv.Driver.DisplayName(),
			DisplayDescription: dv.Driver.DisplayDescription(),
			Devices:            marshalDevices(devices),
		}
	}

	v.lock.Lock()
	v.Drivers = drivers
	v.isClean = false
	v.lock.Unlock()

	// background goroutine to auto-detect new devices:
	go func() {
		t := time.NewTicker(v.c.detectInterval)
		defer t.Stop()

		for {
			select {
			case <-v.c.stop:
				return
			case <-t.C:
			}

			// don't need to auto-detect while already connected:
			if v.c.IsConnected() {
				continue
			}

			if v.redetect() {
				v.Update()
				v.MarkDirty()
			}
		}
	}()
}

func (v *BusViewModel) redetect() (needUpdate bool) {
	v.lock.Lock()
	drivers := append([]*DriverViewModel{}, v.Drivers...)
	v.lock.Unlock()

	for _, dvm := range drivers {
		devices := detect(v.c.log, dvm.namedDriver)

		v.lock.Lock()
		replace := len(dvm.devices) != len(devices)
		for i := 0; !replace && i < len(devices); i++ {
			replace = devices[i].GetId() != dvm.devices[i].GetId()
		}
		if replace {
			// swap out the array and recreate the view models:
			dvm.devices = devices
			dvm.Devices = marshalDevices(devices)
			needUpdate = true
		}
		v.lock.Unlock()
	}
	return
}

func (v *BusViewModel) Update() {
	isConnected := v.c.IsConnected()

	v.lock.Lock()
	drivers := v.Drivers
	v.lock.Unlock()

	connected := make([]bool, len(drivers))
	for i, dvm := range drivers {
		connected[i] = v.c.IsConnectedToDriver(dvm.namedDriver)
	}

	defer v.lock.Unlock()
	v.lock.Lock()

	v.IsConnected = isConnected
	for i, dvm := range drivers {
		dvm.IsConnected = connected[i]
		if !dvm.IsConnected {
			dvm.SelectedDevice = ""
		}
	}
	v.isClean = false
}

// Commands:
func (v *BusViewModel) CommandFor(command string) (ce interfaces.Command, err error) {
	var ok bool
	ce, ok = v.commands[command]
	if !ok {
		err = fmt.Errorf("no command '%s' found", command)
	}
	return
}

type ConnectCommandExecutor struct{ v *BusViewModel }
type ConnectCommandArgs struct {
	Driver string          `json:"driver"`
	Device json.RawMessage `json:"device"`
}

func (c *ConnectCommandExecutor) CreateArgs() interfaces.CommandArgs { return &ConnectCommandArgs{} }
func (c *ConnectCommandExecutor) Execute(args interfaces.CommandArgs) error {
	return c.v.Connect(args.(*ConnectCommandArgs))
}

func (v *BusViewModel) Connect(args *ConnectCommandArgs) error {
	driverName := args.Driver

	v.lock.Lock()
	dvm := v.FindNamedDriver(driverName)
	if dvm == nil {
		v.lock.Unlock()
		return fmt.Errorf("bus driver not found by name '%s'", driverName)
	}

	// unmarshal the json:
	device := dvm.namedDriver.Driver.Empty()
	if err := json.Unmarshal(args.Device, device); err != nil {
		v.lock.Unlock()
		return fmt.Errorf("bus could not unmarshal device json: %w", err)
	}

	dvm.SelectedDevice = device.GetId()
	pair := i2c.NamedDriverDevicePair{NamedDriver: dvm.namedDriver, Device: device}
	v.lock.Unlock()

	v.c.BusConnected(pair)
	return nil
}

// FindNamedDriver must be called with v.lock held.
func (v *BusViewModel) FindNamedDriver(driverName string) *DriverViewModel {
	for _, dvm := range v.Drivers {
		if driverName == dvm.Name {
			return dvm
		}
	}
	return nil
}

type DisconnectCommandExecutor struct{ v *BusViewModel }

func (c *DisconnectCommandExecutor) CreateArgs() interfaces.CommandArgs { return nil }
func (c *DisconnectCommandExecutor) Execute(_ interfaces.CommandArgs) error {
	return c.v.Disconnect()
}

func (v *BusViewModel) Disconnect() error {
	v.c.BusDisconnected()

	return nil
}

type ScanCommandExecutor struct{ v *BusViewModel }

func (c *ScanCommandExecutor) CreateArgs() interfaces.CommandArgs { return nil }
func (c *ScanCommandExecutor) Execute(_ interfaces.CommandArgs) error {
	return c.v.Scan()
}

// Scan probes every non-reserved 7-bit address of the connected bus.
func (v *BusViewModel) Scan() error {
	defer v.c.UpdateAndNotifyView()

	conn := busConn{v.c}
	found := make([]string, 0)
	for addr := firstScanAddress; addr <= lastScanAddress; addr++ {
		present, err := conn.Probe(uint8(addr))
		if err != nil {
			v.c.setStatus(fmt.Sprintf("Scan failed: %v", err))
			return err
		}
		if present {
			found = append(found, fmt.Sprintf("0x%02x", addr))
		}
	}

	v.lock.Lock()
	v.Found = found
	v.lock.Unlock()

	v.c.setStatus(fmt.Sprintf("Found %d devices", len(found)))
	return nil
}
