package ws

import (
	"compress/flate"
	"crypto/tls"
	"io"
	"net"
	"net/http"

	"github.com/gobwas/httphead"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsflate"
	"github.com/gobwas/ws/wsutil"

	"zapbox.lol/chk"
	"zapbox.lol/context"
	"zapbox.lol/errorf"
)

// flateLevel trades ratio for speed; relay messages are small.
const flateLevel = 4

// Connection is the client side of a relay websocket. Messages are deflated
// when the relay agrees to permessage-deflate during the handshake.
type Connection struct {
	conn     net.Conn
	deflate  bool
	control  wsutil.FrameHandlerFunc
	reader   *wsutil.Reader
	writer   *wsutil.Writer
	inflater *wsflate.Reader
	deflater *wsflate.Writer
	readMsg  wsflate.MessageState
	writeMsg wsflate.MessageState
}

func negotiatedDeflate(hs ws.Handshake) bool {
	for _, ext := range hs.Extensions {
		if string(ext.Name) == wsflate.ExtensionName {
			return true
		}
	}
	return false
}

// NewConnection dials url and completes the websocket handshake.
func NewConnection(c context.T, url string, requestHeader http.Header,
	tlsConfig *tls.Config) (cn *Connection, err error) {

	dialer := ws.Dialer{
		Header:     ws.HandshakeHeaderHTTP(requestHeader),
		Extensions: []httphead.Option{wsflate.DefaultParameters.Option()},
		TLSConfig:  tlsConfig,
	}
	var conn net.Conn
	var hs ws.Handshake
	if conn, _, hs, err = dialer.Dial(c, url); err != nil {
		if c.Err() != nil {
			return nil, c.Err()
		}
		return nil, errorf.D("dialing %s: %w", url, err)
	}
	cn = &Connection{
		conn:    conn,
		deflate: negotiatedDeflate(hs),
		control: wsutil.ControlFrameHandler(conn, ws.StateClientSide),
	}
	state := ws.StateClientSide
	if cn.deflate {
		state |= ws.StateExtended
		cn.readMsg.SetCompressed(true)
		cn.writeMsg.SetCompressed(true)
		cn.inflater = wsflate.NewReader(nil, func(r io.Reader) wsflate.Decompressor {
			return flate.NewReader(r)
		})
		cn.deflater = wsflate.NewWriter(nil, func(w io.Writer) wsflate.Compressor {
			// only fails for an invalid level
			fw, _ := flate.NewWriter(w, flateLevel)
			return fw
		})
	}
	cn.reader = &wsutil.Reader{
		Source:         conn,
		State:          state,
		OnIntermediate: cn.control,
		Extensions:     []wsutil.RecvExtension{&cn.readMsg},
	}
	cn.writer = wsutil.NewWriter(conn, state, ws.OpText)
	cn.writer.SetExtensions(&cn.writeMsg)
	return
}

// WriteMessage sends data as one text message.
func (cn *Connection) WriteMessage(c context.T, data []byte) (err error) {
	if c.Err() != nil {
		return context.Canceled
	}
	var w io.Writer = cn.writer
	if cn.deflate && cn.writeMsg.IsCompressed() {
		cn.deflater.Reset(cn.writer)
		w = cn.deflater
	}
	if _, err = w.Write(data); chk.T(err) {
		return errorf.E("writing message: %w", err)
	}
	if w == cn.deflater {
		if err = cn.deflater.Close(); chk.T(err) {
			return errorf.E("closing deflater: %w", err)
		}
	}
	if err = cn.writer.Flush(); chk.T(err) {
		return errorf.E("flushing message: %w", err)
	}
	return
}

// nextDataFrame skips to the next text or binary frame, answering control
// frames on the way. The connection is closed if the stream breaks.
func (cn *Connection) nextDataFrame(c context.T) (err error) {
	for {
		if c.Err() != nil {
			return context.Canceled
		}
		var h ws.Header
		if h, err = cn.reader.NextFrame(); err != nil {
			_ = cn.conn.Close()
			return errorf.E("reading frame: %w", err)
		}
		switch {
		case h.OpCode.IsControl():
			if err = cn.control(h, cn.reader); chk.T(err) {
				return errorf.E("handling control frame: %w", err)
			}
		case h.OpCode == ws.OpText || h.OpCode == ws.OpBinary:
			return
		}
		if err = cn.reader.Discard(); chk.T(err) {
			return errorf.E("discarding frame: %w", err)
		}
	}
}

// ReadMessage copies the next message into buf.
func (cn *Connection) ReadMessage(c context.T, buf io.Writer) (err error) {
	if err = cn.nextDataFrame(c); err != nil {
		return
	}
	var r io.Reader = cn.reader
	if cn.deflate && cn.readMsg.IsCompressed() {
		cn.inflater.Reset(cn.reader)
		r = cn.inflater
	}
	if _, err = io.Copy(buf, r); chk.T(err) {
		return errorf.E("reading message: %w", err)
	}
	return
}

// Ping writes a ping control frame.
func (cn *Connection) Ping() (err error) {
	if err = wsutil.WriteClientMessage(cn.conn, ws.OpPing, nil); chk.D(err) {
		return errorf.D("ping: %w", err)
	}
	return
}

func (cn *Connection) Close() error { return cn.conn.Close() }
