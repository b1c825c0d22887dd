package transport

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// Kind categorizes a detected transport family.
type Kind string

const (
	KindMPSSE     Kind = "ftdi-mpsse"
	KindUnknown   Kind = "unknown"
	KindLoopback  Kind = "loopback"
)

// Info describes a detected interface.
type Info struct {
	Kind        Kind
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string
}

// Label returns a user-friendly description for the interface.
func (i Info) Label() string {
	if i.Description != "" {
		return i.Description
	}
	return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

// FTDI VID/PID pairs that support MPSSE mode, per FTDI's published device
// list; FT2232H/FT232H/FT4232H all expose it on at least one interface.
var knownFTDIVIDPIDs = []knownUSBDevice{
	{VendorID: 0x0403, ProductID: 0x6010, Description: "FTDI FT2232H"},
	{VendorID: 0x0403, ProductID: 0x6011, Description: "FTDI FT4232H"},
	{VendorID: 0x0403, ProductID: 0x6014, Description: "FTDI FT232H"},
	{VendorID: 0x0403, ProductID: 0x6015, Description: "FTDI FT230X (no MPSSE)"},
}

// Discover enumerates connected USB devices that match known MPSSE-capable
// VID/PID pairs. It always appends a loopback entry so callers can exercise
// the rest of the pipeline without hardware attached.
func Discover(ctx context.Context) ([]Info, error) {
	var results []Info
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	results = append(results, Info{Kind: KindLoopback, Description: "Loopback (no hardware)"})
	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (Info, bool) {
	for _, known := range knownFTDIVIDPIDs {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return Info{
				Kind:        KindMPSSE,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return Info{}, false
}
