package ant

import (
	"strings"

	"github.com/google/gousb"
)

// usbProductIDs lists the radios this package knows how to open, mirroring
// the teacher's single hardcoded VID/PID pair but generalized to the three
// dongles named in spec.md §6 ("Recognized USB product IDs").
var usbProductIDs = []gousb.ID{
	gousb.ID(ProductIDGarmin),
	gousb.ID(ProductIDSuunto),
	gousb.ID(ProductIDOlder),
}

const usbVendorGarmin = gousb.ID(0x0FCF)

// USBDongle is the gousb-backed dongleTransport used by production callers.
// Tests use a mock transport instead, so this file is the only place gousb
// is imported.
type USBDongle struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	config *gousb.Config
	iface  *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint

	cycplus bool
}

// NewUSBDongle prepares (but does not yet open) a USB transport.
func NewUSBDongle() *USBDongle {
	return &USBDongle{}
}

// Open finds the first recognized ANT USB radio, detaches any kernel
// driver holding it, claims its bulk endpoints and inspects its
// manufacturer string for the CYCPLUS fingerprint (spec.md §9).
func (u *USBDongle) Open() error {
	u.ctx = gousb.NewContext()

	var dev *gousb.Device
	var foundErr error
	for _, pid := range usbProductIDs {
		d, err := u.ctx.OpenDeviceWithVIDPID(usbVendorGarmin, pid)
		if err != nil {
			foundErr = err
			continue
		}
		if d != nil {
			dev = d
			break
		}
	}
	if dev == nil {
		u.ctx.Close()
		if foundErr != nil {
			return foundErr
		}
		return ErrNoDongle
	}
	u.dev = dev

	if mfg, err := dev.Manufacturer(); err == nil {
		u.cycplus = strings.Contains(strings.ToUpper(mfg), "CYCPLUS")
	}

	dev.SetAutoDetach(true)

	config, err := dev.Config(1)
	if err != nil {
		u.Close()
		return err
	}
	u.config = config

	iface, err := config.Interface(0, 0)
	if err != nil {
		u.Close()
		return err
	}
	u.iface = iface

	in, err := iface.InEndpoint(1)
	if err != nil {
		u.Close()
		return err
	}
	u.in = in

	out, err := iface.OutEndpoint(1)
	if err != nil {
		u.Close()
		return err
	}
	u.out = out

	return nil
}

// ReadBulk reads one bulk-IN transfer.
func (u *USBDongle) ReadBulk(buf []byte) (int, error) {
	return u.in.Read(buf)
}

// WriteBulk writes one bulk-OUT transfer.
func (u *USBDongle) WriteBulk(data []byte) (int, error) {
	return u.out.Write(data)
}

// IsCYCPLUS reports whether the opened dongle identified itself as a
// CYCPLUS-branded radio, which must not be sent RESET_SYSTEM while
// channels remain assigned (spec.md §9).
func (u *USBDongle) IsCYCPLUS() bool {
	return u.cycplus
}

// Close releases the interface, config and USB context in reverse
// acquisition order.
func (u *USBDongle) Close() error {
	if u.iface != nil {
		u.iface.Close()
	}
	if u.config != nil {
		u.config.Close()
	}
	if u.dev != nil {
		u.dev.Close()
	}
	if u.ctx != nil {
		u.ctx.Close()
	}
	return nil
}
