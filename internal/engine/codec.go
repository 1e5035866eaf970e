package engine

import (
	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(64<<20))
)

// pack marshals v with sonic and compresses it.
func pack(v interface{}) ([]byte, error) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(raw, nil), nil
}

func unpack(data []byte, v interface{}) error {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(raw, v)
}
