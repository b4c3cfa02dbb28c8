// internal/object/compression.go
package object

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures at-rest compression of blobs.
type CompressionOptions struct {
	Enabled bool
	// Minimum size in bytes before compressing
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
	// Content above this size is compressed through the streaming encoder
	StreamingThreshold int64
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		Enabled:            false,
		MinSize:            1024,
		Level:              2,
		StreamingThreshold: 50 * 1024 * 1024,
	}
}

// compressionManager pools zstd encoders and decoders. Decoding is always
// available so a store can read blobs written while compression was on.
type compressionManager struct {
	opts CompressionOptions

	encoders sync.Pool
	decoders sync.Pool
	bufs     sync.Pool
}

func newCompressionManager(opts CompressionOptions) (*compressionManager, error) {
	if opts.Level <= 0 {
		opts.Level = 2
	}
	if opts.StreamingThreshold <= 0 {
		opts.StreamingThreshold = DefaultCompressionOptions().StreamingThreshold
	}

	level := zstd.EncoderLevelFromZstd(opts.Level)
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating test encoder: %w", err)
	}
	enc.Close()

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating test decoder: %w", err)
	}
	dec.Close()

	return &compressionManager{
		opts: opts,
		encoders: sync.Pool{
			New: func() interface{} {
				enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
				return enc
			},
		},
		decoders: sync.Pool{
			New: func() interface{} {
				dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				return dec
			},
		},
		bufs: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}, nil
}

func (cm *compressionManager) shouldCompress(size int) bool {
	return cm.opts.Enabled && size >= cm.opts.MinSize
}

// compress returns the bytes to write for content. The result never aliases a
// pooled buffer.
func (cm *compressionManager) compress(content []byte) ([]byte, error) {
	if !cm.shouldCompress(len(content)) {
		return content, nil
	}

	enc := cm.encoders.Get().(*zstd.Encoder)
	defer cm.encoders.Put(enc)

	if int64(len(content)) > cm.opts.StreamingThreshold {
		return cm.compressStream(enc, content)
	}
	return enc.EncodeAll(content, make([]byte, 0, len(content)/2)), nil
}

func (cm *compressionManager) compressStream(enc *zstd.Encoder, content []byte) ([]byte, error) {
	buf := cm.bufs.Get().(*bytes.Buffer)
	defer cm.bufs.Put(buf)
	buf.Reset()

	enc.Reset(buf)
	if _, err := io.Copy(enc, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("streaming compression: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing compression: %w", err)
	}

	return append([]byte(nil), buf.Bytes()...), nil
}

// decompress reports ok=false when data is not a zstd frame or fails to decode.
func (cm *compressionManager) decompress(data []byte) ([]byte, bool) {
	if len(data) <= len(zstdMagic) || !bytes.Equal(data[:len(zstdMagic)], zstdMagic) {
		return nil, false
	}

	dec := cm.decoders.Get().(*zstd.Decoder)
	defer cm.decoders.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, false
	}
	return out, true
}
