package rcon

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// mockRconServer is a mock Source RCON server that authenticates with password
// and answers commands through respond.
type mockRconServer struct {
	listener net.Listener
	address  string
	password string
	respond  func(command string) string
	accepted atomic.Int32

	mu       sync.Mutex
	commands []string
	conns    []net.Conn
}

func newMockRconServer(t *testing.T, password string, respond func(string) string) *mockRconServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create mock server: %v", err)
	}

	server := &mockRconServer{
		listener: listener,
		address:  listener.Addr().String(),
		password: password,
		respond:  respond,
	}
	go server.serve()
	t.Cleanup(server.close)
	return server
}

func (s *mockRconServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.accepted.Add(1)
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.handle(conn)
	}
}

func (s *mockRconServer) handle(conn net.Conn) {
	defer conn.Close()
	for {
		packet, err := ReadPacket(conn)
		if err != nil {
			return
		}
		switch packet.Type {
		case TypeAuth:
			// real servers send an empty response value first
			conn.Write(BuildPacket(packet.ID, TypeResponseValue, ""))
			if packet.Payload != s.password {
				conn.Write(BuildPacket(-1, TypeAuthResponse, ""))
				return
			}
			conn.Write(BuildPacket(packet.ID, TypeAuthResponse, ""))
		case TypeExecCommand:
			s.mu.Lock()
			s.commands = append(s.commands, packet.Payload)
			s.mu.Unlock()
			conn.Write(BuildPacket(packet.ID, TypeResponseValue, s.respond(packet.Payload)))
		}
	}
}

// dropConnections closes every accepted connection, simulating a server restart
func (s *mockRconServer) dropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *mockRconServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *mockRconServer) close() {
	s.listener.Close()
	s.dropConnections()
}

func echo(command string) string { return command + "\n" }

func TestBuildPacket(t *testing.T) {
	tests := []struct {
		name        string
		id          int32
		packetType  int32
		payload     string
		expectedLen int
	}{
		{"Simple command packet", 1, TypeExecCommand, "status", 4 + 4 + 4 + len("status") + 2},
		{"Empty payload", 2, TypeResponseValue, "", 4 + 4 + 4 + 2},
		{"Long payload", 3, TypeExecCommand, strings.Repeat("a", 1000), 4 + 4 + 4 + 1000 + 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packet := BuildPacket(tt.id, tt.packetType, tt.payload)
			if len(packet) != tt.expectedLen {
				t.Errorf("BuildPacket() len = %d, want %d", len(packet), tt.expectedLen)
			}

			packetSize := int32(binary.LittleEndian.Uint32(packet[0:4]))
			if packetSize != int32(len(packet)-4) {
				t.Errorf("Packet Size = %d, want %d", packetSize, len(packet)-4)
			}

			decoded, err := ReadPacket(bytes.NewReader(packet))
			if err != nil {
				t.Fatalf("ReadPacket() error = %v", err)
			}
			if decoded.ID != tt.id || decoded.Type != tt.packetType || decoded.Payload != tt.payload {
				t.Errorf("ReadPacket() = %+v", decoded)
			}
		})
	}
}

func TestReadPacketRejectsBadSize(t *testing.T) {
	for _, size := range []int32{0, 9, maxPacketSize + 1} {
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, size)
		buf.Write(make([]byte, 16))
		if _, err := ReadPacket(&buf); !errors.Is(err, ErrInvalidPacket) {
			t.Errorf("size %d: error = %v, want ErrInvalidPacket", size, err)
		}
	}
}

func TestExecute(t *testing.T) {
	server := newMockRconServer(t, "secret", echo)
	client := NewClient(ClientConfig{Address: server.address, Password: "secret", Timeout: time.Second}, discardLogger)
	defer client.Close()

	commands := []string{"css_swap 76561198000000001 CT", `say "Teams balanced"`, "test 你好 😀"}
	for _, cmd := range commands {
		out, err := client.Execute(context.Background(), cmd)
		if err != nil {
			t.Fatalf("Execute(%q) error = %v", cmd, err)
		}
		if out != cmd {
			t.Errorf("Execute(%q) = %q", cmd, out)
		}
	}

	if !client.IsConnected() {
		t.Error("client should stay connected between commands")
	}
	if got := server.accepted.Load(); got != 1 {
		t.Errorf("server accepted %d connections, want 1", got)
	}
}

func TestExecuteAuthFailure(t *testing.T) {
	server := newMockRconServer(t, "secret", echo)
	client := NewClient(ClientConfig{Address: server.address, Password: "wrong", Timeout: time.Second}, discardLogger)
	defer client.Close()

	_, err := client.Execute(context.Background(), "status")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("Execute() error = %v, want ErrAuthFailed", err)
	}
	if client.IsConnected() {
		t.Error("client should not stay connected after auth failure")
	}
	if len(server.received()) != 0 {
		t.Error("no command should reach the server without auth")
	}
}

func TestExecuteReconnects(t *testing.T) {
	server := newMockRconServer(t, "secret", echo)
	client := NewClient(ClientConfig{Address: server.address, Password: "secret", Timeout: time.Second}, discardLogger)
	defer client.Close()

	if _, err := client.Execute(context.Background(), "first"); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}

	server.dropConnections()

	out, err := client.Execute(context.Background(), "second")
	if err != nil {
		t.Fatalf("Execute() after drop error = %v", err)
	}
	if out != "second" {
		t.Errorf("Execute() = %q, want second", out)
	}
	if got := server.accepted.Load(); got != 2 {
		t.Errorf("server accepted %d connections, want 2", got)
	}
}

func TestExecuteUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	listener.Close()

	client := NewClient(ClientConfig{Address: addr, Password: "secret", Timeout: 200 * time.Millisecond}, discardLogger)
	if _, err := client.Execute(context.Background(), "status"); err == nil {
		t.Error("Execute() against closed port should fail")
	}
}

func TestExecuteAfterClose(t *testing.T) {
	server := newMockRconServer(t, "secret", echo)
	client := NewClient(ClientConfig{Address: server.address, Password: "secret"}, discardLogger)
	client.Close()

	if _, err := client.Execute(context.Background(), "status"); !errors.Is(err, ErrClosed) {
		t.Errorf("Execute() error = %v, want ErrClosed", err)
	}
}
