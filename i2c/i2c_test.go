package i2c

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

type testDevice struct{ id string }

func (d testDevice) GetId() string          { return d.id }
func (d testDevice) GetDisplayName() string { return "Test " + d.id }

type testDriver struct{ order int }

func (d *testDriver) DisplayOrder() int          { return d.order }
func (d *testDriver) DisplayName() string        { return "Test" }
func (d *testDriver) DisplayDescription() string { return "Test driver" }
func (d *testDriver) Empty() DeviceDescriptor    { return testDevice{} }
func (d *testDriver) Detect() ([]DeviceDescriptor, error) {
	return []DeviceDescriptor{testDevice{"a"}}, nil
}
func (d *testDriver) Open(desc DeviceDescriptor, logger *log.Logger) (Conn, error) {
	q := &testQueue{}
	q.BaseInit(desc.GetId(), q, logger)
	return q, nil
}

func TestRegistry(t *testing.T) {
	unregisterAllDrivers()
	defer unregisterAllDrivers()

	Register("b", &testDriver{order: 1})
	Register("a", &testDriver{order: 2})
	Register("c", &testDriver{order: 1})

	names := []string{}
	for _, d := range Drivers() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"b", "c", "a"}, names)

	_, ok := DriverByName("x")
	assert.False(t, ok)

	_, err := Open("x", testDevice{"a"}, log.NewTestLogger(t))
	assert.ErrorContains(t, err, "unknown driver")

	conn, err := Open("a", testDevice{"a"}, log.NewTestLogger(t))
	assert.NoError(t, err)
	assert.NoError(t, conn.Close())

	panicked := func() (p bool) {
		defer func() { p = recover() != nil }()
		Register("a", &testDriver{})
		return
	}()
	assert.True(t, panicked)
}

func TestMarshalDeviceDescriptor(t *testing.T) {
	m := MarshalDeviceDescriptor(testDevice{"x"})
	assert.Equal(t, "x", m.Id)
	assert.Equal(t, "Test x", m.DisplayName)
}
