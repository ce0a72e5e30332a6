// Package export serializes a decoded dataset into a self-describing CBOR
// container using the RFC 8746 typed-array and multi-dimensional-array tags.
package export

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"example.com/spedec/dataset"
	"example.com/spedec/spe"
)

const (
	tagMultiDimArray = 40
	tagUint8         = 64
	tagUint16LE      = 69
	tagUint32LE      = 70
	tagInt16LE       = 77
	tagInt32LE       = 78
	tagFloat32LE     = 85
	tagFloat64LE     = 86
)

type envelope struct {
	Format string               `cbor:"format"`
	Attrs  map[string]string    `cbor:"attrs,omitempty"`
	Track  map[string][]float64 `cbor:"track,omitempty"`
	Arrays []arrayRecord        `cbor:"arrays"`
}

type arrayRecord struct {
	Name          string               `cbor:"name"`
	Dims          []string             `cbor:"dims"`
	PixelFormat   string               `cbor:"pixelFormat"`
	Coords        map[string][]float64 `cbor:"coords"`
	WavelengthDim string               `cbor:"wavelengthDim,omitempty"`
	Data          cbor.Tag             `cbor:"data"`
}

func typedArrayTag(p spe.PixelType) (uint64, error) {
	switch p {
	case spe.PixelUint8:
		return tagUint8, nil
	case spe.PixelUint16:
		return tagUint16LE, nil
	case spe.PixelUint32:
		return tagUint32LE, nil
	case spe.PixelInt16:
		return tagInt16LE, nil
	case spe.PixelInt32:
		return tagInt32LE, nil
	case spe.PixelFloat32:
		return tagFloat32LE, nil
	case spe.PixelFloat64:
		return tagFloat64LE, nil
	}
	return 0, fmt.Errorf("no typed array tag for %s", p)
}

// Marshal encodes the dataset as one CBOR envelope.
func Marshal(ds *dataset.Dataset) ([]byte, error) {
	env := envelope{
		Format: "spedec/1",
		Attrs:  ds.Attrs,
		Track:  ds.Track,
		Arrays: make([]arrayRecord, 0, len(ds.Arrays)),
	}
	for _, arr := range ds.Arrays {
		tag, err := typedArrayTag(arr.Tensor.Pixel)
		if err != nil {
			return nil, fmt.Errorf("array %q: %w", arr.Name, err)
		}
		env.Arrays = append(env.Arrays, arrayRecord{
			Name:          arr.Name,
			Dims:          arr.Dims[:],
			PixelFormat:   arr.Tensor.Pixel.String(),
			Coords:        arr.Coords,
			WavelengthDim: arr.WavelengthDim,
			Data: cbor.Tag{
				Number: tagMultiDimArray,
				Content: []interface{}{
					[]int{arr.Tensor.Frames, arr.Tensor.Height, arr.Tensor.Width},
					cbor.Tag{Number: tag, Content: arr.Tensor.Raw},
				},
			},
		})
	}
	return cbor.Marshal(env)
}

// WriteFile marshals the dataset and writes it to path.
func WriteFile(path string, ds *dataset.Dataset) error {
	b, err := Marshal(ds)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
