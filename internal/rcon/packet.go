package rcon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Source RCON packet types
const (
	TypeResponseValue int32 = 0
	TypeExecCommand   int32 = 2
	TypeAuthResponse  int32 = 2
	TypeAuth          int32 = 3
)

// maxPacketSize is the largest packet body the server may send
const maxPacketSize = 4096 + 10

var ErrInvalidPacket = errors.New("invalid rcon packet")

type Packet struct {
	ID      int32
	Type    int32
	Payload string
}

// BuildPacket encodes a packet as size, id, type, payload and two null terminators
func BuildPacket(id int32, packetType int32, payload string) []byte {
	size := int32(4 + 4 + len(payload) + 2)
	buffer := bytes.NewBuffer(make([]byte, 0, size+4))
	binary.Write(buffer, binary.LittleEndian, size)
	binary.Write(buffer, binary.LittleEndian, id)
	binary.Write(buffer, binary.LittleEndian, packetType)
	buffer.WriteString(payload)
	buffer.Write([]byte{0x00, 0x00})
	return buffer.Bytes()
}

// ReadPacket decodes a single packet from r
func ReadPacket(r io.Reader) (Packet, error) {
	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return Packet{}, err
	}
	if size < 10 || size > maxPacketSize {
		return Packet{}, fmt.Errorf("%w: size %d", ErrInvalidPacket, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, err
	}

	return Packet{
		ID:      int32(binary.LittleEndian.Uint32(body[0:4])),
		Type:    int32(binary.LittleEndian.Uint32(body[4:8])),
		Payload: string(bytes.TrimRight(body[8:], "\x00")),
	}, nil
}
