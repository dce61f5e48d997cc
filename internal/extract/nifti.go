package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

const nifti1HeaderSize = 348

// nifti1Header mirrors the on-disk NIfTI-1 header field by field.
type nifti1Header struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

var niftiDataTypes = map[int16]string{
	0:    "unknown",
	1:    "binary",
	2:    "uint8",
	4:    "int16",
	8:    "int32",
	16:   "float32",
	32:   "complex64",
	64:   "float64",
	128:  "rgb24",
	256:  "int8",
	512:  "uint16",
	768:  "uint32",
	1024: "int64",
	1280: "uint64",
	1536: "float128",
	1792: "complex128",
	2048: "complex256",
	2304: "rgba32",
}

// ErrNotNIfTI1 is returned for headers that are neither NIfTI-1 byte order.
var ErrNotNIfTI1 = errors.New("not a NIfTI-1 header")

// NIfTIGzip reads the header of a gzip-compressed NIfTI-1 file.
func NIfTIGzip(r io.Reader, _ int64) (map[string]any, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer func() { _ = zr.Close() }()
	return NIfTI(zr, -1)
}

// NIfTI reads the NIfTI-1 header: shape, voxel size, data type,
// description and the sform affine when present.
func NIfTI(r io.Reader, _ int64) (map[string]any, error) {
	buf := make([]byte, nifti1HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read nifti header: %w", err)
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(buf) == nifti1HeaderSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(buf) == nifti1HeaderSize:
		order = binary.BigEndian
	default:
		return nil, ErrNotNIfTI1
	}

	var h nifti1Header
	if err := binary.Read(bytes.NewReader(buf), order, &h); err != nil {
		return nil, fmt.Errorf("decode nifti header: %w", err)
	}

	ndim := int(h.Dim[0])
	if ndim < 1 || ndim > 7 {
		return nil, fmt.Errorf("nifti header: invalid dimension count %d", ndim)
	}
	shape := make([]any, ndim)
	voxel := make([]any, ndim)
	for i := 0; i < ndim; i++ {
		shape[i] = int64(h.Dim[i+1])
		voxel[i] = float64(h.Pixdim[i+1])
	}

	dt, ok := niftiDataTypes[h.Datatype]
	if !ok {
		dt = fmt.Sprintf("code_%d", h.Datatype)
	}

	hdr := map[string]any{
		"shape":       shape,
		"voxel_size":  voxel,
		"data_type":   dt,
		"bitpix":      int64(h.Bitpix),
		"description": cString(h.Descrip[:]),
		"qform_code":  int64(h.QformCode),
		"sform_code":  int64(h.SformCode),
		"magic":       cString(h.Magic[:]),
	}
	if h.SformCode > 0 {
		hdr["affine"] = []any{row(h.SrowX), row(h.SrowY), row(h.SrowZ), []any{0.0, 0.0, 0.0, 1.0}}
	}
	return map[string]any{"nifti_header": hdr}, nil
}

func row(r [4]float32) []any {
	return []any{float64(r[0]), float64(r[1]), float64(r[2]), float64(r[3])}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimSpace(b))
}
