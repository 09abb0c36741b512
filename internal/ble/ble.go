// Package ble defines the narrow transport interface the Device Session
// depends on, and one concrete implementation backed by
// tinygo.org/x/bluetooth's central-mode GATT API. The interface is
// deliberately small — connect, discover-and-subscribe, write — the
// same shape the teacher's LinkMgr keeps its transport behind
// (io.ReadWriteCloser): the session package never imports
// tinygo.org/x/bluetooth directly, only this package's Peripheral.
package ble

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/pkg/errors"
	"tinygo.org/x/bluetooth"
)

// Characteristic identifies one of the five inbound/outbound
// characteristics on the device's service (spec §6); charUUIDs below
// maps each one to its full UUID.
type Characteristic int

const (
	CharCommandToDevice Characteristic = iota
	CharCommandFromDevice
	CharEvents
	CharData
	CharMemfault
)

// NotifyFunc is invoked once per inbound notification on a subscribed
// characteristic, in arrival order (spec §5's ordering guarantee).
type NotifyFunc func(char Characteristic, data []byte)

// ErrLinkUnavailable is returned when the peripheral cannot be reached
// within the adapter's scan timeout (spec §4.2).
var ErrLinkUnavailable = errors.New("ble: link unavailable")

// Peripheral is the transport the Device Session drives. One
// implementation — Adapter below — backs it with real Bluetooth LE;
// tests back it with a fake that plays back canned notifications, the
// same role the teacher's TestLink plays for its serial transport.
type Peripheral interface {
	Connect(ctx context.Context, addr string) error
	Disconnect() error
	IsConnected() bool
	Subscribe(ctx context.Context, onNotify NotifyFunc) error
	Write(ctx context.Context, char Characteristic, data []byte) error
}

// DeviceInfo is one scan result: an advertising peripheral offering the
// service UUID this package looks for.
type DeviceInfo struct {
	Address string
	Name    string
}

// Scanner lists nearby devices; kept separate from Peripheral since
// scanning has no notion of "which one device" the session layer owns.
type Scanner interface {
	Scan(ctx context.Context) ([]DeviceInfo, error)
}

// serviceUUID and the five characteristic UUIDs, written out as literals
// that repeat internal/codec's ServiceUUID and CharSuffix* values (this
// package does not import internal/codec).
var (
	serviceUUID   = mustParseUUID("61080001-8d6d-82b8-614a-1c8cb0f8dcc6")
	charUUIDs     = map[Characteristic]bluetooth.UUID{
		CharCommandToDevice:   mustParseUUID("61080002-8d6d-82b8-614a-1c8cb0f8dcc6"),
		CharCommandFromDevice: mustParseUUID("61080003-8d6d-82b8-614a-1c8cb0f8dcc6"),
		CharEvents:            mustParseUUID("61080004-8d6d-82b8-614a-1c8cb0f8dcc6"),
		CharData:              mustParseUUID("61080005-8d6d-82b8-614a-1c8cb0f8dcc6"),
		CharMemfault:          mustParseUUID("61080007-8d6d-82b8-614a-1c8cb0f8dcc6"),
	}
	notifyChars = []Characteristic{CharCommandFromDevice, CharEvents, CharData, CharMemfault}
)

func mustParseUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("ble: invalid UUID literal %q: %v", s, err))
	}
	return u
}

// Adapter is the tinygo.org/x/bluetooth-backed Peripheral.
type Adapter struct {
	log *logrus.Entry

	adapter *bluetooth.Adapter
	device  *bluetooth.Device

	writeChar  bluetooth.DeviceCharacteristic
	notifyMap  map[Characteristic]bluetooth.DeviceCharacteristic
	connected  bool
}

// NewAdapter wraps the system's default Bluetooth adapter. interfaceName
// (the BLE_INTERFACE setting) is accepted but not used: the default
// adapter is always the one enabled, whatever name is passed.
func NewAdapter(log *logrus.Entry, interfaceName string) (*Adapter, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, errors.Wrap(err, "ble: enable adapter")
	}
	return &Adapter{log: log, adapter: adapter, notifyMap: map[Characteristic]bluetooth.DeviceCharacteristic{}}, nil
}

// Connect scans for a peripheral advertising the service UUID and
// matching addr, then connects to it. Fails with ErrLinkUnavailable if
// no matching peripheral appears before ctx is done.
func (a *Adapter) Connect(ctx context.Context, addr string) error {
	found := make(chan bluetooth.ScanResult, 1)

	go func() {
		_ = a.adapter.Scan(func(adp *bluetooth.Adapter, result bluetooth.ScanResult) {
			if addr != "" && result.Address.String() != addr {
				return
			}
			if !result.HasServiceUUID(serviceUUID) {
				return
			}
			_ = adp.StopScan()
			select {
			case found <- result:
			default:
			}
		})
	}()

	select {
	case result := <-found:
		device, err := a.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
		if err != nil {
			return errors.Wrap(err, "ble: connect")
		}
		a.device = &device
		a.connected = true
		return nil
	case <-ctx.Done():
		_ = a.adapter.StopScan()
		return ErrLinkUnavailable
	}
}

// Scan listens for advertising peripherals offering the service UUID
// until ctx is done, returning every distinct address seen (spec §6's
// `scan` subcommand).
func (a *Adapter) Scan(ctx context.Context) ([]DeviceInfo, error) {
	seen := map[string]DeviceInfo{}
	var mu sync.Mutex
	scanErr := make(chan error, 1)

	go func() {
		scanErr <- a.adapter.Scan(func(adp *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(serviceUUID) {
				return
			}
			mu.Lock()
			seen[result.Address.String()] = DeviceInfo{Address: result.Address.String(), Name: result.LocalName()}
			mu.Unlock()
		})
	}()

	<-ctx.Done()
	_ = a.adapter.StopScan()
	if err := <-scanErr; err != nil {
		return nil, errors.Wrap(err, "ble: scan")
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]DeviceInfo, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	return out, nil
}

// Disconnect tears down the link.
func (a *Adapter) Disconnect() error {
	if a.device == nil {
		return nil
	}
	a.connected = false
	return a.device.Disconnect()
}

// IsConnected reports the last known connection state.
func (a *Adapter) IsConnected() bool {
	return a.connected
}

// Subscribe discovers the service and its five characteristics and
// enables notifications on the four inbound ones, dispatching every
// notification to onNotify in arrival order.
func (a *Adapter) Subscribe(ctx context.Context, onNotify NotifyFunc) error {
	if a.device == nil {
		return errors.New("ble: not connected")
	}

	services, err := a.device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return errors.Wrap(err, "ble: discover services")
	}
	if len(services) == 0 {
		return errors.New("ble: service not found")
	}
	service := services[0]

	wanted := make([]bluetooth.UUID, 0, len(charUUIDs))
	for _, u := range charUUIDs {
		wanted = append(wanted, u)
	}
	chars, err := service.DiscoverCharacteristics(wanted)
	if err != nil {
		return errors.Wrap(err, "ble: discover characteristics")
	}

	byUUID := make(map[bluetooth.UUID]bluetooth.DeviceCharacteristic, len(chars))
	for _, c := range chars {
		byUUID[c.UUID()] = c
	}

	writeChar, ok := byUUID[charUUIDs[CharCommandToDevice]]
	if !ok {
		return errors.New("ble: command-to-device characteristic not found")
	}
	a.writeChar = writeChar

	for _, id := range notifyChars {
		char, ok := byUUID[charUUIDs[id]]
		if !ok {
			return errors.Errorf("ble: characteristic %d not found", id)
		}
		a.notifyMap[id] = char
		cid := id
		if err := char.EnableNotifications(func(data []byte) {
			onNotify(cid, append([]byte(nil), data...))
		}); err != nil {
			return errors.Wrapf(err, "ble: subscribe to characteristic %d", id)
		}
	}

	return nil
}

// Write sends data to the device without waiting for acknowledgement
// (spec §4.2's send_command contract).
func (a *Adapter) Write(ctx context.Context, char Characteristic, data []byte) error {
	if char != CharCommandToDevice {
		return errors.Errorf("ble: write not supported on characteristic %d", char)
	}
	_, err := a.writeChar.WriteWithoutResponse(data)
	return err
}
