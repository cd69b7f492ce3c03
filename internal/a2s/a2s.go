// Package a2s queries a Source 2 server with the A2S_INFO UDP protocol.
package a2s

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	packetHeader = 0xFFFFFFFF

	a2sInfo      = 0x54 // 'T'
	s2aInfo      = 0x49 // 'I'
	s2aChallenge = 0x41 // 'A'

	infoPayload = "Source Engine Query\x00"

	maxPacketSize  = 1400
	defaultTimeout = 5 * time.Second
)

// ErrUnexpectedResponse is returned when the server answers with something other than an info reply
var ErrUnexpectedResponse = errors.New("unexpected a2s response")

// Client queries server info over UDP
type Client struct {
	timeout time.Duration
}

// Info is the subset of A2S_INFO the scrims API reports
type Info struct {
	Name       string `json:"name"`
	Map        string `json:"map"`
	Game       string `json:"game"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	Bots       int    `json:"bots"`
	Version    string `json:"version"`
}

// NewClient creates a client; a non-positive timeout uses 5s
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{timeout: timeout}
}

// QueryInfo asks the server at address for its info, answering a challenge if one is sent
func (c *Client) QueryInfo(ctx context.Context, address string) (Info, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "udp", address)
	if err != nil {
		return Info{}, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Info{}, fmt.Errorf("failed to set deadline: %w", err)
	}

	response, err := roundTrip(conn, infoRequest(nil))
	if err != nil {
		return Info{}, err
	}

	if len(response) >= 9 && response[4] == s2aChallenge {
		response, err = roundTrip(conn, infoRequest(response[5:9]))
		if err != nil {
			return Info{}, err
		}
	}

	return parseInfo(response)
}

func infoRequest(challenge []byte) []byte {
	request := &bytes.Buffer{}
	binary.Write(request, binary.LittleEndian, uint32(packetHeader))
	request.WriteByte(a2sInfo)
	request.WriteString(infoPayload)
	request.Write(challenge)
	return request.Bytes()
}

func roundTrip(conn net.Conn, request []byte) ([]byte, error) {
	if _, err := conn.Write(request); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	response := make([]byte, maxPacketSize)
	n, err := conn.Read(response)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return response[:n], nil
}

func parseInfo(data []byte) (Info, error) {
	reader := bytes.NewReader(data)
	var info Info

	var header uint32
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return info, fmt.Errorf("failed to read header: %w", err)
	}
	responseType, err := reader.ReadByte()
	if err != nil {
		return info, fmt.Errorf("failed to read response type: %w", err)
	}
	if header != packetHeader || responseType != s2aInfo {
		return info, fmt.Errorf("%w: %02x", ErrUnexpectedResponse, responseType)
	}

	// protocol version
	if _, err := reader.ReadByte(); err != nil {
		return info, fmt.Errorf("failed to read protocol: %w", err)
	}

	if info.Name, err = readString(reader); err != nil {
		return info, fmt.Errorf("failed to read name: %w", err)
	}
	if info.Map, err = readString(reader); err != nil {
		return info, fmt.Errorf("failed to read map: %w", err)
	}
	if _, err = readString(reader); err != nil {
		return info, fmt.Errorf("failed to read folder: %w", err)
	}
	if info.Game, err = readString(reader); err != nil {
		return info, fmt.Errorf("failed to read game: %w", err)
	}

	var appID uint16
	if err := binary.Read(reader, binary.LittleEndian, &appID); err != nil {
		return info, fmt.Errorf("failed to read app id: %w", err)
	}

	var counts [3]byte
	if _, err := io.ReadFull(reader, counts[:]); err != nil {
		return info, fmt.Errorf("failed to read player counts: %w", err)
	}
	info.Players, info.MaxPlayers, info.Bots = int(counts[0]), int(counts[1]), int(counts[2])

	// server type, environment, visibility, VAC
	if _, err := reader.Seek(4, io.SeekCurrent); err != nil {
		return info, fmt.Errorf("failed to skip server flags: %w", err)
	}

	if info.Version, err = readString(reader); err != nil {
		return info, fmt.Errorf("failed to read version: %w", err)
	}

	return info, nil
}

// readString reads a null-terminated string from the reader
func readString(reader *bytes.Reader) (string, error) {
	var result []byte
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(result), nil
		}
		result = append(result, b)
	}
}
