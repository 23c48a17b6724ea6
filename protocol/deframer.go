package protocol

import "sync/atomic"

// deframer splits a byte stream into frames. After any malformed frame it
// drops bytes up to the next sync byte before trusting a length again.
type deframer struct {
	synced atomic.Bool

	// checkDest rejects frames whose sequence lacks SeqDest.
	checkDest bool

	onFrame  func(seq uint8, payload []byte)
	onResync func()
	onDrop   func(reason string)
}

func (d *deframer) init(checkDest bool) {
	d.checkDest = checkDest
	d.synced.Store(true)
}

// feed consumes whole frames from data and returns the unconsumed tail.
func (d *deframer) feed(data []byte) []byte {
	for len(data) > 0 {
		if !d.synced.Load() {
			i := 0
			for i < len(data) && data[i] != SyncByte {
				i++
			}
			if i == len(data) {
				return nil
			}
			data = data[i+1:]
			d.synced.Store(true)
			if d.onResync != nil {
				d.onResync()
			}
			continue
		}
		if data[0] == SyncByte {
			data = data[1:]
			continue
		}
		if len(data) < FrameMin {
			break
		}
		n := int(data[posLen])
		if n < FrameMin || n > FrameMax {
			d.drop("bad length")
			continue
		}
		seq := data[posSeq]
		if d.checkDest && seq&^SeqMask != SeqDest {
			d.drop("bad sequence")
			continue
		}
		if len(data) < n {
			break
		}
		if data[n-1] != SyncByte {
			d.drop("missing sync")
			continue
		}
		got := uint16(data[n-3])<<8 | uint16(data[n-2])
		if got != CRC16(data[:n-TrailerSize]) {
			d.drop("bad crc")
			continue
		}
		payload := data[HeaderSize : n-TrailerSize]
		data = data[n:]
		d.onFrame(seq, payload)
	}
	return data
}

func (d *deframer) drop(reason string) {
	d.synced.Store(false)
	if d.onDrop != nil {
		d.onDrop(reason)
	}
}
