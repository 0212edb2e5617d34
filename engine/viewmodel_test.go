package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"i2cgui/config"
	"i2cgui/i2c"
	"i2cgui/i2c/mock"
	"i2cgui/i2c/wsbridge"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

const testDriver = "enginetest"

var testSystem = mock.NewDemoSystem()

func init() {
	i2c.Register(testDriver, &mock.Driver{System: testSystem})
}

type viewRecorder struct {
	lock  sync.Mutex
	views map[string]interface{}
}

func (r *viewRecorder) NotifyView(view string, viewModel interface{}) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.views[view] = viewModel
}

func (r *viewRecorder) get(view string) interface{} {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.views[view]
}

func newViewModel(t *testing.T, dir string) (*ViewModel, *viewRecorder) {
	t.Helper()

	vm, err := NewViewModel(config.Demo(), log.NewTestLogger(t))
	assert.NoError(t, err)
	vm.configDir = func() (string, error) { return dir, nil }
	vm.detectInterval = time.Hour

	rec := &viewRecorder{views: map[string]interface{}{}}
	vm.ProvideViewNotifier(rec)
	vm.Init()
	t.Cleanup(vm.Close)
	return vm, rec
}

func execute(t *testing.T, vm *ViewModel, view, command, args string) error {
	t.Helper()

	ce, err := vm.CommandFor(view, command)
	assert.NoError(t, err)

	ca := ce.CreateArgs()
	if ca != nil {
		assert.NoError(t, json.Unmarshal([]byte(args), ca))
	}
	return ce.Execute(ca)
}

func connect(t *testing.T, vm *ViewModel) {
	t.Helper()
	assert.NoError(t, execute(t, vm, "bus", "connect", `{"driver":"enginetest","device":{"name":"0"}}`))
	assert.True(t, vm.IsConnected())
}

func TestViewModel_CommandFor(t *testing.T) {
	vm, _ := newViewModel(t, t.TempDir())

	_, err := vm.CommandFor("nope", "connect")
	assert.Error(t, err)
	_, err = vm.CommandFor("status", "connect")
	assert.Error(t, err)
	_, err = vm.CommandFor("bus", "nope")
	assert.Error(t, err)
}

func TestViewModel_ReadWrite(t *testing.T) {
	dev, ok := testSystem.Device(0x48)
	assert.True(t, ok)
	dev.Write(0, []byte{0, 0, 0})

	vm, rec := newViewModel(t, t.TempDir())
	connect(t, vm)

	assert.NoError(t, execute(t, vm, "space", "readAll", ""))

	space, ok := rec.get("space").(*SpaceViewModel)
	assert.True(t, ok)
	assert.Equal(t, "0x48", space.DeviceAddress)
	assert.Equal(t, "false", space.Modified)

	bases := map[string]string{}
	for _, b := range space.Blocks {
		bases[b.Name] = b.BaseAddress
	}
	assert.Equal(t, "0x00", bases["Control"])
	assert.Equal(t, "0xfc", bases["Identity"])

	values := map[string]string{}
	addresses := map[string]string{}
	for _, r := range space.Registers {
		values[r.Key] = r.Value
		addresses[r.Key] = r.Address
	}
	assert.Equal(t, "0xfc", addresses["Identity/Id0"])
	assert.Equal(t, "0x49", values["Identity/Id0"])
	assert.Equal(t, "0x01", values["Identity/Revision"])

	assert.NoError(t, execute(t, vm, "space", "setField", `{"key":"Control/Gain","value":"0x5"}`))
	space = rec.get("space").(*SpaceViewModel)
	assert.Equal(t, "true", space.Modified)

	assert.NoError(t, execute(t, vm, "space", "writeBlock", `{"block":"Control"}`))
	assert.Equal(t, byte(0x28), dev.Registers[0])

	err := execute(t, vm, "space", "readBlock", `{"block":"Nope"}`)
	assert.Error(t, err)
	status, _ := rec.get("status").(string)
	assert.Equal(t, "Read block Nope failed: "+err.Error(), status)
}

func TestViewModel_Disconnected(t *testing.T) {
	vm, _ := newViewModel(t, t.TempDir())

	err := execute(t, vm, "space", "readAll", "")
	assert.ErrorContains(t, err, ErrNotConnected.Error())

	err = execute(t, vm, "bus", "scan", "")
	assert.ErrorContains(t, err, ErrNotConnected.Error())
}

func TestViewModel_Scan(t *testing.T) {
	vm, rec := newViewModel(t, t.TempDir())
	connect(t, vm)

	assert.NoError(t, execute(t, vm, "bus", "scan", ""))
	bus, ok := rec.get("bus").(*BusViewModel)
	assert.True(t, ok)
	assert.Equal(t, []string{"0x48"}, bus.Found)
	assert.Equal(t, "Found 1 devices", vm.Status())
}

func TestViewModel_SetAddress(t *testing.T) {
	vm, rec := newViewModel(t, t.TempDir())

	assert.NoError(t, execute(t, vm, "space", "setAddress", `{"address":"0x21"}`))
	space := rec.get("space").(*SpaceViewModel)
	assert.Equal(t, "0x21", space.DeviceAddress)

	assert.Error(t, execute(t, vm, "space", "setAddress", `{"address":"0x80"}`))
	assert.Error(t, execute(t, vm, "space", "setAddress", `{"address":"bogus"}`))

	assert.NoError(t, execute(t, vm, "space", "setAddress", `{"address":""}`))
	space = rec.get("space").(*SpaceViewModel)
	assert.Equal(t, "", space.DeviceAddress)
	assert.Equal(t, "Unknown", space.Modified)
}

func TestViewModel_Configuration(t *testing.T) {
	dir := t.TempDir()

	vm, _ := newViewModel(t, dir)
	connect(t, vm)
	assert.NoError(t, execute(t, vm, "space", "setAddress", `{"address":"0x48"}`))

	b, err := os.ReadFile(filepath.Join(dir, "config.json"))
	assert.NoError(t, err)
	var saved configuration
	assert.NoError(t, json.Unmarshal(b, &saved))
	assert.Equal(t, testDriver, saved.Bus.Driver)
	assert.Equal(t, "mock:0", saved.Bus.Device)
	assert.Equal(t, "0x48", saved.Space.DeviceAddress)
	vm.Close()

	// a new instance reconnects from the saved configuration:
	again, _ := newViewModel(t, dir)
	assert.True(t, again.IsConnected())
}

func TestViewModel_Bridge(t *testing.T) {
	vm, rec := newViewModel(t, t.TempDir())
	connect(t, vm)

	assert.NoError(t, execute(t, vm, "bridge", "start", `{"listenAddr":"127.0.0.1:0"}`))
	bridge, ok := rec.get("bridge").(*BridgeViewModel)
	assert.True(t, ok)
	assert.True(t, bridge.IsServing)

	drv := &wsbridge.Driver{}
	conn, err := drv.Open(wsbridge.DeviceDescriptor{URL: "ws://" + bridge.ListenAddr + "/i2c"}, log.NewTestLogger(t))
	assert.NoError(t, err)
	defer conn.Close()

	data, err := conn.ReadDeviceMemory(0x48, 0xFC, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x49, 0x32, 0x43, 0x01}, data)

	assert.NoError(t, execute(t, vm, "bridge", "stop", ""))
	bridge = rec.get("bridge").(*BridgeViewModel)
	assert.False(t, bridge.IsServing)
}

func TestBusConn_FollowsConnection(t *testing.T) {
	vm, _ := newViewModel(t, t.TempDir())
	conn := busConn{vm}

	_, err := conn.ReadDeviceMemory(0x48, 0, 1)
	assert.ErrorContains(t, err, ErrNotConnected.Error())

	connect(t, vm)
	present, err := conn.Probe(0x48)
	assert.NoError(t, err)
	assert.True(t, present)

	vm.BusDisconnected()
	assert.False(t, vm.IsConnected())
	_, err = conn.Probe(0x48)
	assert.ErrorContains(t, err, ErrNotConnected.Error())
}
