package docker

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// demux splits a multiplexed Docker stream into stdout and stderr.
// Without a TTY the daemon frames output as an 8-byte header (stream
// type, three zero bytes, big-endian payload size) followed by the
// payload.
func demux(dstOut, dstErr io.Writer, src io.Reader) error {
	r := bufio.NewReader(src)

	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}

		streamType := header[0] // 1=stdout, 2=stderr
		size := binary.BigEndian.Uint32(header[4:8])
		if size == 0 {
			continue
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return err
		}

		w := dstOut
		if streamType == 2 {
			w = dstErr
		}
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write stream payload: %w", err)
		}
	}
}
