// Package blob compresses chunk and light blobs before they reach a provider.
package blob

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	codecErr error
)

func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	once.Do(func() {
		enc, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		dec, codecErr = zstd.NewReader(nil)
	})
	return enc, dec, codecErr
}

// Compress returns a zstd frame holding b. A nil input stays nil so that
// "missing" survives a round trip.
func Compress(b []byte) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	e, _, err := codecs()
	if err != nil {
		return nil, err
	}
	return e.EncodeAll(b, make([]byte, 0, len(b)/4)), nil
}

func Decompress(b []byte) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	_, d, err := codecs()
	if err != nil {
		return nil, err
	}
	out, err := d.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("blob: %w", err)
	}
	return out, nil
}
