package protocol

// Encoder frames controller messages into an OutputBuffer.
// Each frame carries one message; the sequence number counts frames
// modulo 16 so the host can detect losses.
type Encoder struct {
	output OutputBuffer
	seq    uint8
}

// NewEncoder creates an Encoder writing to output
func NewEncoder(output OutputBuffer) *Encoder {
	return &Encoder{output: output}
}

// EncodeFrame encodes a frame with the given data
func (e *Encoder) EncodeFrame(frameData func(output OutputBuffer)) {
	cursor := e.output.CurPosition()

	// Write header (length placeholder and sequence)
	e.output.Output([]byte{0, e.seq})

	// Write frame contents
	frameData(e.output)

	// Update length field
	changed := len(e.output.DataSince(cursor))
	e.output.Update(cursor, uint8(changed+MessageTrailerSize))

	// Calculate and write CRC
	crc := CRC16(e.output.DataSince(cursor))
	e.output.Output([]byte{
		uint8((crc & 0xFF00) >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})

	e.seq = (e.seq + 1) & MessageSeqMask
}

// SendMessage frames one message: its id followed by its arguments
func (e *Encoder) SendMessage(id uint32, args func(output OutputBuffer)) {
	e.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, id)
		if args != nil {
			args(output)
		}
	})
}

// SendText sends s as MsgText frames, split to respect MessageLengthMax
func (e *Encoder) SendText(s string) {
	// id byte + up to two length bytes
	const chunk = MessagePayloadMax - 3
	for len(s) > chunk {
		part := s[:chunk]
		e.SendMessage(MsgText, func(output OutputBuffer) {
			EncodeVLQString(output, part)
		})
		s = s[chunk:]
	}
	e.SendMessage(MsgText, func(output OutputBuffer) {
		EncodeVLQString(output, s)
	})
}

// Message is a decoded frame
type Message struct {
	Sequence uint8
	ID       uint32
	Args     []byte // VLQ encoded arguments following the id
}

// Decoder extracts messages from a byte stream. After a corrupt frame it
// drops bytes up to the next sync byte.
type Decoder struct {
	synchronized bool
	dropped      int // frames discarded (bad length, CRC or sync)
	lost         int // frames missing according to the sequence number
	nextSeq      int // -1 until the first frame
}

// NewDecoder creates a decoder that starts synchronized
func NewDecoder() *Decoder {
	return &Decoder{synchronized: true, nextSeq: -1}
}

// Decode parses every complete frame in input, calls handle for each one
// and pops the consumed bytes. An incomplete trailing frame stays in input.
func (d *Decoder) Decode(input InputBuffer, handle func(Message)) {
	data := input.Data()
	total := len(data)

	for len(data) > 0 {
		if !d.synchronized {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			d.synchronized = true
			continue
		}

		// Skip leading sync bytes
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			d.desync()
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != 0 {
			d.desync()
			continue
		}

		// Wait for full message
		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.desync()
			continue
		}

		frame := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]
		d.trackSequence(seq)

		id, err := DecodeVLQUint(&frame)
		if err != nil {
			d.dropped++
			continue
		}
		args := make([]byte, len(frame))
		copy(args, frame)
		handle(Message{Sequence: seq, ID: id, Args: args})
	}

	if consumed := total - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

func (d *Decoder) desync() {
	d.synchronized = false
	d.dropped++
}

func (d *Decoder) trackSequence(seq uint8) {
	if d.nextSeq >= 0 && int(seq) != d.nextSeq {
		d.lost += (int(seq) - d.nextSeq) & MessageSeqMask
	}
	d.nextSeq = int((seq + 1) & MessageSeqMask)
}

// Dropped returns the number of corrupt frames discarded
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Lost returns the number of frames skipped according to sequence numbers
func (d *Decoder) Lost() int {
	return d.lost
}
