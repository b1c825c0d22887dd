package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/tapwalk/jtaghost/pkg/template"
)

// XVCServer exposes a local Driver over the Xilinx Virtual Cable protocol
// so third-party tools (Vivado Hardware Manager, impact) can drive it as if
// it were a real Xilinx cable. Only one client is served at a time: the
// listening socket is closed the instant a client is accepted and only
// rebound once that client disconnects, matching
// original_source/playtag/lib/transport.py's connection(), which shuts down
// and closes its socket and rebinds a fresh TCPServer per client rather than
// leaving the kernel backlog to silently queue a second one.
type XVCServer struct {
	Driver  Driver
	MaxBits int
	Log     *slog.Logger
}

// NewXVCServer wraps d for serving.
func NewXVCServer(d Driver) *XVCServer {
	return &XVCServer{Driver: d, MaxBits: xvcDefaultMaxBits, Log: slog.Default()}
}

// Serve listens on network/addr (net.Listen's own arguments, e.g. "tcp" and
// ":2542") and serves one client at a time, rebinding between clients so the
// socket is only ever listening when no session is active.
func (s *XVCServer) Serve(network, addr string) error {
	for {
		lis, err := net.Listen(network, addr)
		if err != nil {
			return err
		}
		conn, err := lis.Accept()
		lis.Close()
		if err != nil {
			return err
		}
		s.Log.Info("xvc client connected", "addr", conn.RemoteAddr())
		if err := s.handle(conn); err != nil && err != io.EOF {
			s.Log.Warn("xvc session ended", "err", err)
		}
		conn.Close()
	}
}

func (s *XVCServer) handle(conn net.Conn) error {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	r := bufio.NewReader(conn)

	for {
		header, err := r.Peek(8)
		if err != nil {
			return err
		}

		switch {
		case string(header[:8]) == "getinfo:":
			if _, err := r.Discard(8); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(conn, "xvcServer_v1.0:%d\n", s.MaxBits); err != nil {
				return err
			}
		case string(header[:7]) == "settck:":
			if _, err := r.Discard(7); err != nil {
				return err
			}
			period := make([]byte, 4)
			if _, err := io.ReadFull(r, period); err != nil {
				return err
			}
			if _, err := conn.Write(period); err != nil {
				return err
			}
		case string(header[:6]) == "shift:":
			if err := s.handleShift(conn, r); err != nil {
				return err
			}
		default:
			return fmt.Errorf("xvc: unrecognized command %q", header)
		}
	}
}

func (s *XVCServer) handleShift(conn net.Conn, r *bufio.Reader) error {
	hdr := make([]byte, 10)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return err
	}
	n := int(binary.LittleEndian.Uint32(hdr[6:10]))
	if n > s.MaxBits {
		return fmt.Errorf("xvc: shift of %d bits exceeds configured maximum %d", n, s.MaxBits)
	}
	numBytes := (n + 7) / 8

	tmsBuf := make([]byte, numBytes)
	tdiBuf := make([]byte, numBytes)
	if _, err := io.ReadFull(r, tmsBuf); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, tdiBuf); err != nil {
		return err
	}

	tmsChrono := template.BitsFromBytes(tmsBuf, n)
	tdiChrono := template.BitsFromBytes(tdiBuf, n)
	tdoReversed, err := s.Driver.Exchange(reverseBits(tmsChrono), reverseBits(tdiChrono), TDORequest{Length: n})
	if err != nil {
		return err
	}
	tdoBuf := template.BytesFromBits(reverseBits(tdoReversed))

	_, err = conn.Write(tdoBuf)
	return err
}
