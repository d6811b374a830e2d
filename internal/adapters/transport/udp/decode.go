// Package udp receives accelerometer samples as ASCII datagrams and writes
// acknowledgements back to the sender.
package udp

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/okian/fallsense/internal/domain/model"
)

// Decode parses "ax,ay,az" and multiplies each axis by scale.
// Surrounding whitespace is ignored.
func Decode(payload []byte, scale float64) (model.Sample, error) {
	if !utf8.Valid(payload) {
		return model.Sample{}, fmt.Errorf("%w: invalid utf-8", ErrMalformedDatagram)
	}

	fields := bytes.Split(bytes.TrimSpace(payload), []byte{','})
	if len(fields) != model.Axes {
		return model.Sample{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedDatagram, model.Axes, len(fields))
	}

	var v [model.Axes]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(string(bytes.TrimSpace(f)), 64)
		if err != nil {
			return model.Sample{}, fmt.Errorf("%w: field %d: %v", ErrMalformedDatagram, i, err)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return model.Sample{}, fmt.Errorf("%w: field %d is not finite", ErrMalformedDatagram, i)
		}
		v[i] = x * scale
	}

	return model.Sample{AX: v[0], AY: v[1], AZ: v[2]}, nil
}
