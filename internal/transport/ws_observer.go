package transport

import "github.com/brekkeio/streamcore/internal/ws"

// wsObserver implements ws.Observer, reassembling a fragmented WebSocket
// message (continuation frames) into one payload before handing it to the
// application-level WSHandler, and answering control frames (ping/close)
// itself the way a conforming endpoint must (RFC 6455 §5.5).
type wsObserver struct {
	s    *Server
	sess *session

	opcode  byte
	payload []byte
}

func (o *wsObserver) MessageStart(opcode byte) {
	o.opcode = opcode
	o.payload = o.payload[:0]
}

func (o *wsObserver) FrameData(p []byte) {
	o.payload = append(o.payload, p...)
}

func (o *wsObserver) MessageEnd() {
	switch o.opcode {
	case ws.OpPing:
		_ = o.sess.conn.Send(ws.WriteFrame(nil, ws.OpPong, o.payload, true))
	case ws.OpClose:
		code := 1005
		if len(o.payload) >= 2 {
			code = int(o.payload[0])<<8 | int(o.payload[1])
		}
		_ = o.sess.conn.Send(ws.CloseFrame(code, ""))
		_ = o.sess.conn.Close()
	case ws.OpPong:
		// no-op: liveness is inferred from any traffic, not tracked here.
	default:
		if o.s.wsHandler != nil {
			o.s.wsHandler.OnWSMessage(o.sess.conn, o.opcode, o.payload)
		}
	}
}

func (o *wsObserver) Error(code int) {
	_ = o.sess.conn.Send(ws.CloseFrame(code, ""))
	_ = o.sess.conn.Close()
}
