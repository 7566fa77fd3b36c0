package ctapi

import (
	"github.com/gregLibert/ct-terminal/pkg/ctbcs"
	"github.com/gregLibert/ct-terminal/pkg/iso7816"
)

func checkChunk(op string, address, size int) error {
	if address < 0 || address > iso7816.MaxOffset {
		return &ArgumentError{Op: op, Arg: "address", Value: address, Reason: "must be in 0-65535"}
	}
	if size < 0 || size > MaxChunkSize {
		return &ArgumentError{Op: op, Arg: "size", Value: size, Reason: "must be <= 255"}
	}
	return nil
}

// readChunk reads size bytes at address with a single READ BINARY.
// ok is false when the card did not answer 90 00 with exactly size bytes.
func (t *Terminal) readChunk(address, size int) (data []byte, ok bool, err error) {
	if err := checkChunk("read", address, size); err != nil {
		return nil, false, err
	}
	cmd, err := iso7816.ReadBinary(address, size)
	if err != nil {
		return nil, false, err
	}
	resp, err := t.exchange(t.slot, ctbcs.HOST, cmd)
	if err != nil {
		return nil, false, err
	}
	if !resp.IsSuccessful() || len(resp.Data()) != size {
		return nil, false, nil
	}
	return resp.Data(), true, nil
}

// writeChunk writes data at address with a single UPDATE BINARY.
func (t *Terminal) writeChunk(address int, data []byte) (bool, error) {
	if err := checkChunk("write", address, len(data)); err != nil {
		return false, err
	}
	cmd, err := iso7816.UpdateBinary(address, data)
	if err != nil {
		return false, err
	}
	resp, err := t.exchange(t.slot, ctbcs.HOST, cmd)
	if err != nil {
		return false, err
	}
	return resp.IsSuccessful(), nil
}

// ReadAll reads from address up to the end of the card memory, or a single
// chunk when the card geometry is unknown.
func (t *Terminal) ReadAll(address int) ([]byte, error) {
	size := t.chunkSize
	if t.card != nil {
		size = t.card.MemorySize() - address
	}
	return t.read(address, size)
}

// Read reads size bytes at address, clamped to the card memory.
//
// Full chunks are read first. When one fails, reading stops and the data read
// so far is returned. The trailing partial chunk is only attempted after all
// full chunks succeeded, and its failure is ignored. On a transport error the
// data read so far is returned with the error.
func (t *Terminal) Read(address, size int) ([]byte, error) {
	if t.card != nil && address+size > t.card.MemorySize() {
		size = t.card.MemorySize() - address
	}
	return t.read(address, size)
}

func (t *Terminal) read(address, size int) ([]byte, error) {
	if t.state == StateClosed {
		return nil, ErrClosed
	}
	if size <= 0 {
		return nil, nil
	}

	var data []byte
	chunk := t.chunkSize
	for size >= chunk {
		d, ok, err := t.readChunk(address, chunk)
		if err != nil {
			return data, err
		}
		if !ok {
			return data, nil
		}
		data = append(data, d...)
		address += chunk
		size -= chunk
	}

	if size > 0 {
		d, ok, err := t.readChunk(address, size)
		if err != nil {
			return data, err
		}
		if ok {
			data = append(data, d...)
		}
	}
	return data, nil
}

// Write writes data at address, clamped to the card memory. It reports false
// as soon as one chunk fails; chunks written before stay written. The result
// of the trailing partial chunk is the result of the write.
func (t *Terminal) Write(address int, data []byte) (bool, error) {
	if t.state == StateClosed {
		return false, ErrClosed
	}

	size := len(data)
	if t.card != nil && address+size > t.card.MemorySize() {
		size = t.card.MemorySize() - address
	}
	if size <= 0 {
		return false, nil
	}

	chunk := t.chunkSize
	offset := 0
	for size >= chunk {
		ok, err := t.writeChunk(address, data[offset:offset+chunk])
		if err != nil || !ok {
			return false, err
		}
		address += chunk
		offset += chunk
		size -= chunk
	}

	if size > 0 {
		return t.writeChunk(address, data[offset:offset+size])
	}
	return true, nil
}
