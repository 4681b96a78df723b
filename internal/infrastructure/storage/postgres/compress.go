package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which JSON is compressed.
const DefaultCompressThreshold = 10 * 1024

// Payload is a JSON document stored either inline or zstd-compressed.
type Payload struct {
	Raw        json.RawMessage `db:"payload"`
	Compressed []byte          `db:"payload_compressed"`
	Algo       CompressionAlgo `db:"compression_algo"`
}

// PayloadCodec marshals values to JSON and compresses large documents.
// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll use.
type PayloadCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewPayloadCodec creates a codec; threshold <= 0 selects DefaultCompressThreshold.
func NewPayloadCodec(threshold int) (*PayloadCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}

	return &PayloadCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Pack marshals v and compresses it when larger than the threshold.
func (c *PayloadCodec) Pack(v any) (Payload, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Payload{}, fmt.Errorf("marshal payload: %w", err)
	}

	if len(raw) <= c.threshold {
		return Payload{Raw: raw, Algo: CompressionNone}, nil
	}

	return Payload{
		Compressed: c.encoder.EncodeAll(raw, nil),
		Algo:       CompressionZstd,
	}, nil
}

// Unpack restores the JSON document and unmarshals it into v.
func (c *PayloadCodec) Unpack(p Payload, v any) error {
	raw := p.Raw
	if p.Algo == CompressionZstd && len(p.Compressed) > 0 {
		decompressed, err := c.decoder.DecodeAll(p.Compressed, nil)
		if err != nil {
			return fmt.Errorf("decompress payload: %w", err)
		}
		raw = decompressed
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
