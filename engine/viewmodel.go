// Package engine owns the bus connection and the address space and exposes both to
// a view as named, JSON serializable view models with commands.
package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"i2cgui/addrspace"
	"i2cgui/config"
	"i2cgui/i2c"
	"i2cgui/interfaces"

	"github.com/retroenv/retrogolib/log"
)

var _ interfaces.ConfigurationSystem = (*ViewModel)(nil)

type ViewModel struct {
	log *log.Logger

	// state:
	driverDevice i2c.NamedDriverDevicePair
	dev          i2c.Conn
	devLock      sync.Mutex

	// every access to space goes through spaceLock:
	space     *addrspace.AddressSpace
	spaceLock sync.Mutex

	isLoadingConfig bool
	configDir       func() (string, error)

	detectInterval time.Duration
	stop           chan struct{}
	stopOnce       sync.Once

	// dependency that notifies view of updated view model:
	viewNotifier interfaces.ViewNotifier

	// View Models:
	viewModels     map[string]interface{}
	viewModelsLock sync.Mutex

	busViewModel    *BusViewModel
	spaceViewModel  *SpaceViewModel
	bridgeViewModel *BridgeViewModel
}

// NewViewModel builds the address space described by file; it starts without a bus.
func NewViewModel(file *config.File, logger *log.Logger) (*ViewModel, error) {
	vm := &ViewModel{
		log:            logger,
		configDir:      interfaces.ConfigDir,
		detectInterval: 2 * time.Second,
		stop:           make(chan struct{}),
	}

	cfg, err := file.SpaceConfig()
	if err != nil {
		return nil, err
	}
	vm.space, err = addrspace.New(cfg, busConn{vm}, logger)
	if err != nil {
		return nil, err
	}

	// instantiate each child view model:
	vm.busViewModel = NewBusViewModel(vm)
	vm.spaceViewModel = NewSpaceViewModel(vm)
	vm.bridgeViewModel = NewBridgeViewModel(vm)

	vm.space.Subscribe(vm.spaceViewModel)

	// assign unique names to each view for easy binding with html/js UI:
	vm.viewModels = map[string]interface{}{
		"status": "Not connected",
		"bus":    vm.busViewModel,
		"space":  vm.spaceViewModel,
		"bridge": vm.bridgeViewModel,
	}

	return vm, nil
}

// Space runs fn with exclusive access to the address space.
func (vm *ViewModel) Space(fn func(s *addrspace.AddressSpace) error) error {
	vm.spaceLock.Lock()
	defer vm.spaceLock.Unlock()
	return fn(vm.space)
}

func (vm *ViewModel) GetViewModel(view string) (interface{}, bool) {
	defer vm.viewModelsLock.Unlock()
	vm.viewModelsLock.Lock()

	viewModel, ok := vm.viewModels[view]
	return viewModel, ok
}

func (vm *ViewModel) NotifyView(view string, model interface{}) {
	defer vm.viewModelsLock.Unlock()
	vm.viewModelsLock.Lock()

	// allow model to customize the instance sent to the view:
	viewModel := model
	if viewModeler, ok := model.(interfaces.ViewModeler); ok {
		viewModel = viewModeler.ViewModel()
	}

	vn := vm.viewNotifier
	if vn == nil {
		return
	}
	vn.NotifyView(view, viewModel)
}

// initializes all view models:
func (vm *ViewModel) Init() {
	for _, view := range vm.views() {
		model, _ := vm.GetViewModel(view)
		if i, ok := model.(interfaces.Initializable); ok {
			i.Init()
		}
	}

	vm.LoadConfiguration()
}

// Close stops background detection, the bridge and the bus connection.
func (vm *ViewModel) Close() {
	vm.stopOnce.Do(func() { close(vm.stop) })
	vm.bridgeViewModel.Stop()
	// keep the saved configuration so the next start reconnects:
	vm.disconnect(false)
}

type configuration struct {
	Bus    *BusConfiguration    `json:"bus"`
	Space  *SpaceConfiguration  `json:"space"`
	Bridge *BridgeConfiguration `json:"bridge"`
}

func (vm *ViewModel) configPath() (string, error) {
	dir, err := vm.configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func (vm *ViewModel) LoadConfiguration() bool {
	if vm.isLoadingConfig {
		return false
	}

	defer func() {
		vm.isLoadingConfig = false
	}()
	vm.isLoadingConfig = true

	path, err := vm.configPath()
	if err != nil {
		vm.log.Warn("Could not find configuration directory", log.Err(err))
		return false
	}

	b, err := os.ReadFile(path)
	if err != nil {
		vm.log.Debug("No configuration loaded", log.Err(err))
		return false
	}

	var cfg configuration
	if err = json.Unmarshal(b, &cfg); err != nil {
		vm.log.Warn("Could not parse configuration file", log.String("path", path), log.Err(err))
		return false
	}

	vm.busViewModel.LoadConfiguration(cfg.Bus)
	vm.spaceViewModel.LoadConfiguration(cfg.Space)
	vm.bridgeViewModel.LoadConfiguration(cfg.Bridge)
	vm.log.Debug("Loaded configuration", log.String("path", path))

	return true
}

func (vm *ViewModel) SaveConfiguration() bool {
	if vm.isLoadingConfig {
		return false
	}

	cfg := configuration{
		Bus:    new(BusConfiguration),
		Space:  new(SpaceConfiguration),
		Bridge: new(BridgeConfiguration),
	}
	vm.busViewModel.SaveConfiguration(cfg.Bus)
	vm.spaceViewModel.SaveConfiguration(cfg.Space)
	vm.bridgeViewModel.SaveConfiguration(cfg.Bridge)

	b, err := json.MarshalIndent(&cfg, "", "  ")
	if err != nil {
		vm.log.Error("Could not marshal configuration", log.Err(err))
		return false
	}

	path, err := vm.configPath()
	if err != nil {
		vm.log.Warn("Could not find configuration directory", log.Err(err))
		return false
	}
	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		vm.log.Warn("Could not create configuration directory", log.String("path", path), log.Err(err))
	}
	if err = os.WriteFile(path, b, 0644); err != nil {
		vm.log.Error("Could not write configuration file", log.String("path", path), log.Err(err))
		return false
	}

	vm.log.Debug("Saved configuration", log.String("path", path))
	return true
}

func (vm *ViewModel) views() []string {
	defer vm.viewModelsLock.Unlock()
	vm.viewModelsLock.Lock()

	views := make([]string, 0, len(vm.viewModels))
	for view := range vm.viewModels {
		views = append(views, view)
	}
	sort.Strings(views)
	return views
}

// updates all view models:
func (vm *ViewModel) Update() {
	for _, view := range vm.views() {
		model, _ := vm.GetViewModel(view)
		if i, ok := model.(interfaces.Updateable); ok {
			i.Update()
		}
	}
}

func (vm *ViewModel) NotifyViewTo(viewNotifier interfaces.ViewNotifier) {
	if viewNotifier == nil {
		return
	}

	// send all view models to this notifier regardless of dirty state:
	for _, view := range vm.views() {
		model, _ := vm.GetViewModel(view)
		if viewModeler, ok := model.(interfaces.ViewModeler); ok {
			model = viewModeler.ViewModel()
		}
		viewNotifier.NotifyView(view, model)
	}
}

// updates all view models and notifies view:
func (vm *ViewModel) UpdateAndNotifyView() {
	for _, view := range vm.views() {
		model, _ := vm.GetViewModel(view)
		if i, ok := model.(interfaces.Updateable); ok {
			i.Update()
		}
		vm.NotifyViewOf(view, model)
	}
}

func (vm *ViewModel) NotifyViewOf(view string, model interface{}) {
	dirtyable, isDirtyable := model.(interfaces.Dirtyable)
	if isDirtyable && !dirtyable.IsDirty() {
		return
	}

	vm.NotifyView(view, model)

	if isDirtyable {
		dirtyable.ClearDirty()
	}
}

// Implements ViewCommandHandler
func (vm *ViewModel) CommandFor(view, command string) (ce interfaces.Command, err error) {
	svm, ok := vm.GetViewModel(view)
	if !ok {
		return nil, fmt.Errorf("view=%s,cmd=%s: no view model found to handle command", view, command)
	}

	commandHandler, ok := svm.(interfaces.ViewModelCommandHandler)
	if !ok {
		return nil, fmt.Errorf("view=%s,cmd=%s: view model does not handle commands", view, command)
	}

	ce, err = commandHandler.CommandFor(command)
	if err != nil {
		err = fmt.Errorf("view=%s,cmd=%s: error from command handler: %w", view, command, err)
	}
	return
}

func (vm *ViewModel) Status() string {
	s, _ := vm.GetViewModel("status")
	msg, _ := s.(string)
	return msg
}

func (vm *ViewModel) setStatus(msg string) {
	vm.log.Info("Status", log.String("status", msg))

	vm.viewModelsLock.Lock()
	vm.viewModels["status"] = msg
	vm.viewModelsLock.Unlock()
}

func (vm *ViewModel) IsConnected() bool {
	defer vm.devLock.Unlock()
	vm.devLock.Lock()
	return vm.dev != nil
}

func (vm *ViewModel) IsConnectedToDriver(driver i2c.NamedDriver) bool {
	defer vm.devLock.Unlock()
	vm.devLock.Lock()
	if vm.dev == nil {
		return false
	}

	return vm.driverDevice.NamedDriver.Name == driver.Name
}

func (vm *ViewModel) BusConnected(pair i2c.NamedDriverDevicePair) {
	defer func() {
		vm.UpdateAndNotifyView()
		vm.SaveConfiguration()
	}()

	vm.devLock.Lock()
	if vm.dev != nil && pair.NamedDriver.Name == vm.driverDevice.NamedDriver.Name &&
		pair.Device.GetId() == vm.driverDevice.Device.GetId() {
		// no change
		vm.devLock.Unlock()
		return
	}
	vm.devLock.Unlock()

	// only one bus at a time:
	vm.BusDisconnected()

	vm.log.Info("Opening bus",
		log.String("driver", pair.NamedDriver.Name),
		log.String("device", pair.Device.GetDisplayName()))
	dev, err := pair.NamedDriver.Driver.Open(pair.Device, vm.log)
	if err != nil {
		vm.log.Error("Could not open bus", log.String("driver", pair.NamedDriver.Name), log.Err(err))
		vm.setStatus(fmt.Sprintf("Could not connect to %s", pair.Device.GetDisplayName()))
		return
	}

	vm.devLock.Lock()
	vm.dev = dev
	vm.driverDevice = pair
	vm.devLock.Unlock()

	if closer, ok := dev.(interface{ Closed() <-chan struct{} }); ok {
		go func() {
			// wait for the bus to be closed underneath us:
			<-closer.Closed()
			vm.devLock.Lock()
			current := vm.dev == dev
			vm.devLock.Unlock()
			if current {
				vm.log.Info("Bus closed", log.String("device", pair.Device.GetDisplayName()))
				vm.BusDisconnected()
			}
		}()
	}

	vm.setStatus(fmt.Sprintf("Connected to %s", pair.Device.GetDisplayName()))
}

func (vm *ViewModel) BusDisconnected() {
	vm.disconnect(true)
}

func (vm *ViewModel) disconnect(save bool) {
	vm.devLock.Lock()
	dev, last := vm.dev, vm.driverDevice
	vm.dev = nil
	vm.driverDevice = i2c.NamedDriverDevicePair{}
	vm.devLock.Unlock()

	if dev == nil {
		return
	}

	defer func() {
		vm.UpdateAndNotifyView()
		if save {
			vm.SaveConfiguration()
		}
	}()

	vm.setStatus("Disconnecting...")
	vm.UpdateAndNotifyView()

	if err := dev.Close(); err != nil {
		vm.log.Warn("Could not close bus", log.Err(err))
	}
	vm.log.Info("Closed bus", log.String("device", last.Device.GetDisplayName()))

	vm.setStatus("Disconnected")
}

func (vm *ViewModel) ProvideViewNotifier(viewNotifier interfaces.ViewNotifier) {
	vm.viewModelsLock.Lock()
	vm.viewNotifier = viewNotifier
	vm.viewModelsLock.Unlock()
}
