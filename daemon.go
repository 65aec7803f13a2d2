package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/godbus/dbus/v5"
)

// run performs the initial scan and then either drains outstanding connect
// requests (one-shot) or watches for adapter power-on events (daemon). It
// returns the process exit code.
func (a *autoconnector) run(osSig <-chan os.Signal) int {
	a.connectAllAdapters()

	if !a.opts.daemon {
		return a.drain(osSig)
	}

	busSig, err := a.bz.subscribeAdapterChanges()
	if err != nil {
		a.log.Error().Err(err).Msg("subscribe to adapter property changes")
		return 1
	}
	a.log.Info().Msg("watching for adapters to be powered on")
	for {
		select {
		case sig := <-busSig:
			a.handleBusSignal(sig)
		case call := <-a.calls:
			a.finish(call)
		case sig := <-osSig:
			switch sig {
			case syscall.SIGHUP:
				a.log.Info().Msg("reload requested, rescanning all adapters")
				a.connectAllAdapters()
			case syscall.SIGINT, syscall.SIGTERM:
				return 0
			default:
				fmt.Fprintf(a.errw, "internal error: unexpected signal %v\n", sig)
				return 2
			}
		}
	}
}

// drain blocks until every dispatched connect request has resolved, then
// exits. A stop signal abandons outstanding requests immediately; reload is
// meaningless outside daemon mode and is ignored.
func (a *autoconnector) drain(osSig <-chan os.Signal) int {
	for len(a.pending) > 0 {
		select {
		case call := <-a.calls:
			a.finish(call)
		case sig := <-osSig:
			switch sig {
			case syscall.SIGHUP:
			case syscall.SIGINT, syscall.SIGTERM:
				return 0
			default:
				fmt.Fprintf(a.errw, "internal error: unexpected signal %v\n", sig)
				return 2
			}
		}
	}
	return 0
}

// handleBusSignal reacts to a PropertiesChanged signal from an adapter. An
// adapter reporting Powered=true gets its devices scanned; everything else
// is ignored.
func (a *autoconnector) handleBusSignal(sig *dbus.Signal) {
	if sig.Name != propsSignal {
		return
	}
	// Body: [interface_name string, changed_props map[string]Variant, invalidated []string]
	if len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != adapterIface {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	poweredVar, ok := changed["Powered"]
	if !ok {
		return
	}
	powered, ok := poweredVar.Value().(bool)
	if !ok || !powered {
		return
	}
	a.log.Info().Str("adapter", string(sig.Path)).Msg("adapter powered on")
	a.connectAdapterDevices(sig.Path)
}
