package ant

// PageBody is the 7 data bytes following channel and page number in a
// BroadcastData/AcknowledgedData payload (spec.md §3 "Page").
type PageBody [7]byte

// Page70Request is the "request for page" common page, sent by either side
// to ask for N repeats of a named page (spec.md §4.4, §6).
type Page70Request struct {
	SlaveSerialNumber    uint16
	Descriptor1          byte
	Descriptor2          byte
	TransmissionResponse byte
	RequestedPage        byte
	CommandType          byte
}

// NumberOfResponses is the low 7 bits of TransmissionResponse.
func (p Page70Request) NumberOfResponses() int {
	return int(p.TransmissionResponse & 0x7F)
}

// RespondWithAcknowledged reports whether replies should be sent as
// AcknowledgedData (bit 7 set) rather than BroadcastData.
func (p Page70Request) RespondWithAcknowledged() bool {
	return p.TransmissionResponse&0x80 != 0
}

// ParsePage70Request decodes a page-70 body.
func ParsePage70Request(body PageBody) Page70Request {
	return Page70Request{
		SlaveSerialNumber:    uint16(body[0]) | uint16(body[1])<<8,
		Descriptor1:          body[2],
		Descriptor2:          body[3],
		TransmissionResponse: body[4],
		RequestedPage:        body[5],
		CommandType:          body[6],
	}
}

// EncodePage70Request encodes a page-70 request body.
func EncodePage70Request(p Page70Request) PageBody {
	var body PageBody
	body[0] = byte(p.SlaveSerialNumber)
	body[1] = byte(p.SlaveSerialNumber >> 8)
	body[2] = p.Descriptor1
	body[3] = p.Descriptor2
	body[4] = p.TransmissionResponse
	body[5] = p.RequestedPage
	body[6] = p.CommandType
	return body
}

// ManufacturerInfo is common page 80.
type ManufacturerInfo struct {
	HWRevision     byte
	ManufacturerID uint16
	ModelNumber    uint16
}

// EncodePage80 encodes common page 80 (manufacturer information).
func EncodePage80(info ManufacturerInfo) PageBody {
	var body PageBody
	// body[0], body[1] reserved
	body[2] = info.HWRevision
	body[3] = byte(info.ManufacturerID)
	body[4] = byte(info.ManufacturerID >> 8)
	body[5] = byte(info.ModelNumber)
	body[6] = byte(info.ModelNumber >> 8)
	return body
}

// ProductInfo is common page 81.
type ProductInfo struct {
	SWRevisionSupplemental byte
	SWRevisionMain         byte
	SerialNumber           uint32
}

// EncodePage81 encodes common page 81 (product information).
func EncodePage81(info ProductInfo) PageBody {
	var body PageBody
	// body[0] reserved
	body[1] = info.SWRevisionSupplemental
	body[2] = info.SWRevisionMain
	body[3] = byte(info.SerialNumber)
	body[4] = byte(info.SerialNumber >> 8)
	body[5] = byte(info.SerialNumber >> 16)
	body[6] = byte(info.SerialNumber >> 24)
	return body
}

// BatteryStatus is common page 82.
type BatteryStatus struct {
	BatteryVoltage byte
}

// EncodePage82 encodes common page 82 (battery status), following the
// source's fixed descriptive bit field (unknown battery identifier, no
// cumulative operating time tracked).
func EncodePage82(b BatteryStatus) PageBody {
	var body PageBody
	body[0] = 0xFF
	body[1] = 0x00
	body[4] = b.BatteryVoltage
	body[5] = 0x0F | 0x10
	return body
}
