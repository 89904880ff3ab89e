/*
Copyright The PGSentinel Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Compression and encryption tags carried in the envelope header. Only
// None is implemented by this transport: NewEnvelope always sets None,
// and ReadEnvelope returns whatever tags it reads without decompressing,
// decrypting or rejecting the body.
const (
	CompressionNone uint8 = 0
	CompressionGzip uint8 = 1
	CompressionZstd uint8 = 2

	EncryptionNone uint8 = 0
	EncryptionAES  uint8 = 1
)

// retryAttempts and retryBackoff implement the bounded retry on short
// reads/writes named in spec.md §4.10 and §6: 10ms backoff, capped at
// 100 attempts (1s total).
const (
	retryAttempts = 100
	retryBackoff  = 10 * time.Millisecond
)

// Envelope is the wire framing around one JSON message body.
type Envelope struct {
	Compression uint8
	Encryption  uint8
	Length      uint32
	Body        []byte
}

// NewEnvelope wraps body with no compression or encryption.
func NewEnvelope(body []byte) Envelope {
	return Envelope{
		Compression: CompressionNone,
		Encryption:  EncryptionNone,
		Length:      uint32(len(body)),
		Body:        body,
	}
}

// WriteEnvelope writes e to w: a 1-byte compression tag, a 1-byte
// encryption tag, a big-endian uint32 length, then the body.
func WriteEnvelope(w io.Writer, e Envelope) error {
	header := make([]byte, 6)
	header[0] = e.Compression
	header[1] = e.Encryption
	binary.BigEndian.PutUint32(header[2:], e.Length)

	if err := retryFullWrite(w, header); err != nil {
		return fmt.Errorf("protocol: writing envelope header: %w", err)
	}
	if err := retryFullWrite(w, e.Body); err != nil {
		return fmt.Errorf("protocol: writing envelope body: %w", err)
	}
	return nil
}

// ReadEnvelope reads one framed message from r.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	header := make([]byte, 6)
	if err := retryFullRead(r, header); err != nil {
		return Envelope{}, fmt.Errorf("protocol: reading envelope header: %w", err)
	}

	e := Envelope{
		Compression: header[0],
		Encryption:  header[1],
		Length:      binary.BigEndian.Uint32(header[2:]),
	}

	e.Body = make([]byte, e.Length)
	if err := retryFullRead(r, e.Body); err != nil {
		return Envelope{}, fmt.Errorf("protocol: reading envelope body: %w", err)
	}

	return e, nil
}

// retryFullRead reads exactly len(buf) bytes, retrying short reads
// with a bounded backoff before giving up.
func retryFullRead(r io.Reader, buf []byte) error {
	total := 0
	attempts := 0

	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n

		if total >= len(buf) {
			return nil
		}

		if err != nil {
			if err == io.EOF && total > 0 {
				return io.ErrUnexpectedEOF
			}
			return err
		}

		attempts++
		if attempts >= retryAttempts {
			return fmt.Errorf("protocol: short read after %d attempts", attempts)
		}
		time.Sleep(retryBackoff)
	}

	return nil
}

// retryFullWrite writes exactly len(buf) bytes, retrying short writes
// with a bounded backoff before giving up.
func retryFullWrite(w io.Writer, buf []byte) error {
	total := 0
	attempts := 0

	for total < len(buf) {
		n, err := w.Write(buf[total:])
		total += n

		if total >= len(buf) {
			return nil
		}

		if err != nil {
			return err
		}

		attempts++
		if attempts >= retryAttempts {
			return fmt.Errorf("protocol: short write after %d attempts", attempts)
		}
		time.Sleep(retryBackoff)
	}

	return nil
}
