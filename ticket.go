package wiivol

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
)

// Ticket offsets, relative to the start of the 0x2A4-byte ticket blob.
// See original_source/Source/Core/Core/IOS/ES/Formats.h (IOS::ES::Ticket).
const (
	ticketTitleKeyOffset      = 0x1BF
	ticketTitleIDOffset       = 0x1DC
	ticketCommonKeyIndexOffset = 0x1F1
)

// commonKeys holds the well-known Wii title-key decryption keys, indexed by
// a ticket's common_key_index byte. Index 0 is the standard retail common
// key; index 1 is the Korean common key. Both are embedded directly, the
// same way olebeck-gopkg/pkg.go and Xpl0itU-godecrypt/decrypt.go embed their
// respective console common keys.
var commonKeys = [][]byte{
	{0xeb, 0xe4, 0x2a, 0x22, 0x5e, 0x85, 0x93, 0xe4, 0x48, 0xd9, 0xc5, 0x45, 0x73, 0x81, 0xaa, 0xf7},
	{0x63, 0xb8, 0x2b, 0xb4, 0xf4, 0x61, 0x4e, 0x2e, 0x13, 0xf2, 0xfe, 0xfb, 0xba, 0x4c, 0x9b, 0x7e},
}

var errTicketSize = errors.New("wiivol: ticket is invalid (wrong size or unknown common-key index)")

// Ticket is a view over a 0x2A4-byte ticket blob. It exposes only the fields
// the core needs (title ID, decrypted title key); RSA signature verification
// is out of scope.
type Ticket struct {
	raw   []byte
	valid bool
}

// InvalidTicket is the process-lifetime sentinel returned for unknown partitions.
var InvalidTicket = Ticket{}

// NewTicket constructs a Ticket view over buf. buf is not copied.
func NewTicket(buf []byte) Ticket {
	if len(buf) != ticketSize {
		return Ticket{}
	}
	commonKeyIndex := buf[ticketCommonKeyIndexOffset]
	if int(commonKeyIndex) >= len(commonKeys) {
		return Ticket{}
	}
	return Ticket{raw: buf, valid: true}
}

// IsValid reports whether this ticket round-trips field access: the buffer
// has the required length and its common-key index is recognized.
func (t Ticket) IsValid() bool {
	return t.valid
}

// TitleID returns the ticket's title ID. Only meaningful if IsValid.
func (t Ticket) TitleID() uint64 {
	if !t.valid {
		return 0
	}
	return binary.BigEndian.Uint64(t.raw[ticketTitleIDOffset : ticketTitleIDOffset+8])
}

// TitleKey returns the decrypted 16-byte AES-128 title key. Only meaningful
// if IsValid.
//
// On-disc, the title key is encrypted with a common key selected by
// common_key_index, using AES-128-CBC with an IV of the 8-byte title ID
// zero-padded to 16 bytes.
func (t Ticket) TitleKey() ([]byte, error) {
	if !t.valid {
		return nil, errTicketSize
	}

	commonKeyIndex := t.raw[ticketCommonKeyIndexOffset]
	block, err := aes.NewCipher(commonKeys[commonKeyIndex])
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aes.BlockSize)
	copy(iv, t.raw[ticketTitleIDOffset:ticketTitleIDOffset+8])

	encrypted := t.raw[ticketTitleKeyOffset : ticketTitleKeyOffset+titleKeySize]
	decrypted := make([]byte, titleKeySize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, encrypted)
	return decrypted, nil
}
