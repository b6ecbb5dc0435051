//go:build linux

package input

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// linux/input-event-codes.h and linux/uinput.h
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	synReport = 0x00

	relX      = 0x00
	relY      = 0x01
	relHWheel = 0x06
	relWheel  = 0x08

	busVirtual = 0x06

	uiDevCreate  = 0x5501     // _IO('U', 1)
	uiDevDestroy = 0x5502     // _IO('U', 2)
	uiDevSetup   = 0x405c5503 // _IOW('U', 3, struct uinput_setup)
	uiSetEvBit   = 0x40045564 // _IOW('U', 100, int)
	uiSetKeyBit  = 0x40045565 // _IOW('U', 101, int)
	uiSetRelBit  = 0x40045566 // _IOW('U', 102, int)

	maxNameSize = 80
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputSetup struct {
	ID           inputID
	Name         [maxNameSize]byte
	FFEffectsMax uint32
}

// inputEvent matches struct input_event. The kernel stamps the time.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type uinputBackend struct {
	f *os.File
}

func openBackend(cfg Config) (Backend, error) {
	f, err := os.OpenFile(cfg.Path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, &DeviceError{Op: "open " + cfg.Path, Err: err}
	}
	b := &uinputBackend{f: f}
	if err := b.setup(cfg.Name); err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

func (b *uinputBackend) setup(name string) error {
	fd := int(b.f.Fd())

	for _, ev := range []int{evSyn, evKey, evRel} {
		if err := unix.IoctlSetInt(fd, uiSetEvBit, ev); err != nil {
			return &DeviceError{Op: fmt.Sprintf("set evbit %d", ev), Err: err}
		}
	}
	for _, code := range Capabilities {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(code)); err != nil {
			return &DeviceError{Op: fmt.Sprintf("set keybit %d", code), Err: err}
		}
	}
	for _, rel := range []int{relX, relY, relWheel, relHWheel} {
		if err := unix.IoctlSetInt(fd, uiSetRelBit, rel); err != nil {
			return &DeviceError{Op: fmt.Sprintf("set relbit %d", rel), Err: err}
		}
	}

	var setup uinputSetup
	setup.ID = inputID{Bustype: busVirtual, Vendor: 0x1, Product: 0x1, Version: 1}
	copy(setup.Name[:maxNameSize-1], name)
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uiDevSetup, uintptr(unsafe.Pointer(&setup))); errno != 0 {
		return &DeviceError{Op: "dev setup", Err: errno}
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uiDevCreate, 0); errno != 0 {
		return &DeviceError{Op: "dev create", Err: errno}
	}
	return nil
}

// Write sends the whole gesture with a single write(2).
func (b *uinputBackend) Write(g Gesture) error {
	buf, err := encodeGesture(g)
	if err != nil {
		return err
	}
	if _, err := b.f.Write(buf); err != nil {
		return &DeviceError{Op: "write", Err: err}
	}
	return nil
}

func (b *uinputBackend) Close() error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), uiDevDestroy, 0)
	cerr := b.f.Close()
	if errno != 0 {
		return errno
	}
	return cerr
}

func encodeGesture(g Gesture) ([]byte, error) {
	var buf bytes.Buffer
	put := func(typ, code uint16, value int32) error {
		return binary.Write(&buf, binary.NativeEndian, inputEvent{Type: typ, Code: code, Value: value})
	}

	for _, a := range g {
		var err error
		switch a.Kind {
		case ActMove:
			if err = put(evRel, relX, a.X); err == nil {
				err = put(evRel, relY, a.Y)
			}
		case ActWheel:
			err = put(evRel, relWheel, a.Value)
		case ActHWheel:
			err = put(evRel, relHWheel, a.Value)
		case ActKeyDown:
			err = put(evKey, uint16(a.Code), 1)
		case ActKeyUp:
			err = put(evKey, uint16(a.Code), 0)
		case ActSync:
			err = put(evSyn, synReport, 0)
		default:
			err = fmt.Errorf("unknown action %s", a.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("encode gesture: %w", err)
		}
	}
	return buf.Bytes(), nil
}
