// SPDX-License-Identifier: MPL-2.0

package executor

import "bytes"

// Output stream identifiers.
const (
	// StreamStdout marks a chunk read from standard output.
	StreamStdout OutputStream = "stdout"
	// StreamStderr marks a chunk read from standard error.
	StreamStderr OutputStream = "stderr"
)

type (
	// OutputStream identifies which stream a Chunk came from.
	OutputStream string

	// Chunk is one piece of live command output. Chunks are pushed to the
	// caller's channel in arrival order per stream; interleaving across the
	// two streams follows whatever order the OS delivers.
	Chunk struct {
		Stream OutputStream
		Data   []byte
	}

	// chunkWriter tees writes into an accumulation buffer and onto the
	// caller's chunk channel. A send blocks until the consumer drains it,
	// which is the backpressure contract: a slow consumer slows the pipe,
	// it never loses data.
	chunkWriter struct {
		stream OutputStream
		out    chan<- Chunk
		buf    *bytes.Buffer
	}
)

// Write implements io.Writer. The chunk data is copied because exec reuses
// its copy buffer between calls.
func (w *chunkWriter) Write(p []byte) (int, error) {
	if _, err := w.buf.Write(p); err != nil {
		return 0, err
	}
	data := make([]byte, len(p))
	copy(data, p)
	w.out <- Chunk{Stream: w.stream, Data: data}
	return len(p), nil
}
