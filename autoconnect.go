package main

import (
	"fmt"
	"io"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

// options holds the process-wide run mode, fixed at startup.
type options struct {
	daemon  bool
	verbose bool
}

// autoconnector walks powered adapters and issues connect requests for
// trusted, not-yet-connected devices. All of its methods run on the single
// event-loop goroutine, so the pending set needs no lock.
type autoconnector struct {
	bz   *bluez
	opts options
	log  zerolog.Logger

	// stable scripting output; everything else goes through log
	out  io.Writer
	errw io.Writer

	// devices with an unresolved connect request; one-shot mode only
	pending map[dbus.ObjectPath]struct{}
	calls   chan *dbus.Call
}

func newAutoconnector(bz *bluez, opts options, log zerolog.Logger) *autoconnector {
	return &autoconnector{
		bz:      bz,
		opts:    opts,
		log:     log,
		out:     os.Stdout,
		errw:    os.Stderr,
		pending: make(map[dbus.ObjectPath]struct{}),
		calls:   make(chan *dbus.Call, 64),
	}
}

// connectAllAdapters scans every adapter under /org/bluez and connects the
// eligible devices of each powered one. Failures are isolated per adapter.
func (a *autoconnector) connectAllAdapters() {
	adapters, err := a.bz.listChildren(rootPath)
	if err != nil {
		a.log.Error().Err(err).Msg("enumerate adapters")
		return
	}
	for _, adapter := range adapters {
		powered, err := a.bz.adapterPowered(adapter)
		if err != nil {
			a.log.Error().Err(err).Str("adapter", string(adapter)).Msg("read adapter power state")
			continue
		}
		if !powered {
			a.log.Debug().Str("adapter", string(adapter)).Msg("adapter powered off, skipping")
			continue
		}
		a.connectAdapterDevices(adapter)
	}
}

// connectAdapterDevices issues a connect request for every trusted device of
// one adapter that is not already connected. Failures are isolated per
// device and never abort the siblings.
func (a *autoconnector) connectAdapterDevices(adapter dbus.ObjectPath) {
	devices, err := a.bz.listChildren(adapter)
	if err != nil {
		a.log.Error().Err(err).Str("adapter", string(adapter)).Msg("enumerate devices")
		return
	}
	for _, dev := range devices {
		st, err := a.bz.deviceState(dev)
		if err != nil {
			a.log.Error().Err(err).Str("device", string(dev)).Msg("read device properties")
			continue
		}
		if st.Connected {
			a.log.Debug().Str("device", string(dev)).Msg("already connected, skipping")
			continue
		}
		if !st.Trusted {
			a.log.Debug().Str("device", string(dev)).Msg("not trusted, skipping")
			continue
		}
		if !a.register(dev) {
			a.log.Debug().Str("device", string(dev)).Msg("connect already in flight, skipping")
			continue
		}
		fmt.Fprintf(a.out, "connecting to device %s\n", dev)
		a.bz.connectDevice(dev, a.calls)
	}
}

// register adds dev to the pending set and reports whether a connect should
// be dispatched. In daemon mode attempts are fire-and-forget: nothing is
// tracked and dispatch is always allowed.
func (a *autoconnector) register(dev dbus.ObjectPath) bool {
	if a.opts.daemon {
		return true
	}
	if _, ok := a.pending[dev]; ok {
		return false
	}
	a.pending[dev] = struct{}{}
	return true
}

// finish records the terminal outcome of one connect request and removes the
// device from the pending set. It reports whether the set drained to empty.
func (a *autoconnector) finish(call *dbus.Call) bool {
	if call.Err != nil {
		fmt.Fprintf(a.errw, "error connecting to device %s: %s\n", call.Path, call.Err)
	} else {
		fmt.Fprintf(a.out, "successfully connected to device %s\n", call.Path)
	}
	delete(a.pending, call.Path)
	return len(a.pending) == 0
}
