package extract

import (
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// dicomSections names the well-known DICOM tag groups.
var dicomSections = map[uint16]string{
	0x0002: "FileMeta",
	0x0008: "Identifying",
	0x0010: "Patient",
	0x0018: "Acquisition",
	0x0020: "Relationship",
	0x0028: "ImagePresentation",
	0x0032: "Study",
	0x0040: "Procedure",
}

func dicomSection(group uint16) string {
	if name, ok := dicomSections[group]; ok {
		return name
	}
	return fmt.Sprintf("Group_%04X", group)
}

func dicomTagName(t tag.Tag) string {
	if info, err := tag.Find(t); err == nil && info.Name != "" {
		return info.Name
	}
	return fmt.Sprintf("Tag_%04X_%04X", t.Group, t.Element)
}

// DICOM reads every data element except pixel data, grouped into one
// section per tag group.
func DICOM(r io.Reader, size int64) (map[string]any, error) {
	ds, err := dicom.Parse(r, size, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("parse dicom: %w", err)
	}
	out := make(map[string]any)
	for _, elem := range ds.Elements {
		v, ok := dicomValue(elem)
		if !ok {
			continue
		}
		section := dicomSection(elem.Tag.Group)
		attrs, _ := out[section].(map[string]any)
		if attrs == nil {
			attrs = make(map[string]any)
			out[section] = attrs
		}
		attrs[dicomTagName(elem.Tag)] = v
	}
	return out, nil
}

func dicomElements(elems []*dicom.Element) map[string]any {
	out := make(map[string]any, len(elems))
	for _, e := range elems {
		if v, ok := dicomValue(e); ok {
			out[dicomTagName(e.Tag)] = v
		}
	}
	return out
}

// dicomValue unwraps single-valued elements to scalars. Sequences become
// lists of mappings.
func dicomValue(elem *dicom.Element) (any, bool) {
	if elem == nil || elem.Value == nil {
		return nil, false
	}
	switch elem.Value.ValueType() {
	case dicom.PixelData:
		return nil, false
	case dicom.Strings:
		return single(elem.Value.GetValue().([]string)), true
	case dicom.Ints:
		return single(elem.Value.GetValue().([]int)), true
	case dicom.Floats:
		return single(elem.Value.GetValue().([]float64)), true
	case dicom.Bytes:
		return elem.Value.GetValue().([]byte), true
	case dicom.Sequences:
		items := elem.Value.GetValue().([]*dicom.SequenceItemValue)
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, dicomElements(item.GetValue().([]*dicom.Element)))
		}
		return out, true
	case dicom.SequenceItem:
		return dicomElements(elem.Value.GetValue().([]*dicom.Element)), true
	}
	return elem.Value.String(), true
}

func single[T any](vals []T) any {
	switch len(vals) {
	case 0:
		return nil
	case 1:
		return vals[0]
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
