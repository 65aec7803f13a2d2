package main

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	busName       = "org.bluez"
	rootPath      = dbus.ObjectPath("/org/bluez")
	adapterIface  = "org.bluez.Adapter1"
	deviceIface   = "org.bluez.Device1"
	propsIface    = "org.freedesktop.DBus.Properties"
	propsSignal   = "org.freedesktop.DBus.Properties.PropertiesChanged"
	connectMethod = deviceIface + ".Connect"
)

// dbusConn is the slice of *dbus.Conn this program uses. Tests substitute a
// fake connection behind it.
type dbusConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	AddMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	Close() error
}

// bluez wraps a system D-Bus connection for BlueZ operations.
type bluez struct {
	conn dbusConn
}

func newBluez() (*bluez, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	// Quick check that BlueZ is on the bus.
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == busName {
			found = true
			break
		}
	}
	if !found {
		conn.Close()
		return nil, fmt.Errorf("org.bluez not found on system bus — is bluetooth.service running?")
	}
	return &bluez{conn: conn}, nil
}

func (b *bluez) close() {
	b.conn.Close()
}

// listChildren returns the immediate child object paths of path, read from
// the object's introspection data. A root path of "/" contributes no prefix.
func (b *bluez) listChildren(path dbus.ObjectPath) ([]dbus.ObjectPath, error) {
	node, err := introspect.Call(b.conn.Object(busName, path))
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", path, err)
	}
	prefix := string(path)
	if prefix == "/" {
		prefix = ""
	}
	children := make([]dbus.ObjectPath, 0, len(node.Children))
	for _, child := range node.Children {
		children = append(children, dbus.ObjectPath(prefix+"/"+child.Name))
	}
	return children, nil
}

// deviceState is the subset of org.bluez.Device1 properties the connect
// policy looks at.
type deviceState struct {
	Connected bool
	Trusted   bool
}

func (b *bluez) deviceState(path dbus.ObjectPath) (deviceState, error) {
	var props map[string]dbus.Variant
	err := b.conn.Object(busName, path).Call(propsIface+".GetAll", 0, deviceIface).Store(&props)
	if err != nil {
		return deviceState{}, fmt.Errorf("get properties of %s: %w", path, err)
	}
	var st deviceState
	if v, ok := props["Connected"].Value().(bool); ok {
		st.Connected = v
	}
	if v, ok := props["Trusted"].Value().(bool); ok {
		st.Trusted = v
	}
	return st, nil
}

func (b *bluez) adapterPowered(path dbus.ObjectPath) (bool, error) {
	var v dbus.Variant
	err := b.conn.Object(busName, path).Call(propsIface+".Get", 0, adapterIface, "Powered").Store(&v)
	if err != nil {
		return false, fmt.Errorf("get Powered of %s: %w", path, err)
	}
	val, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property Powered of %s is not bool", path)
	}
	return val, nil
}

// connectDevice dispatches a non-blocking Device1.Connect call. The terminal
// outcome arrives on ch as a *dbus.Call with Path set to the device path and
// Err set on failure.
func (b *bluez) connectDevice(path dbus.ObjectPath, ch chan *dbus.Call) {
	b.conn.Object(busName, path).Go(connectMethod, 0, ch)
}

// subscribeAdapterChanges subscribes to PropertiesChanged signals for
// Adapter1 objects anywhere under /org/bluez. One namespace-wide match
// avoids per-adapter subscription bookkeeping.
func (b *bluez) subscribeAdapterChanges() (chan *dbus.Signal, error) {
	err := b.conn.AddMatchSignal(
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace(rootPath),
		dbus.WithMatchArg(0, adapterIface),
	)
	if err != nil {
		return nil, fmt.Errorf("add signal match: %w", err)
	}
	ch := make(chan *dbus.Signal, 16)
	b.conn.Signal(ch)
	return ch, nil
}
