package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/rwcarlsen/goexif/tiff"
)

// Baseline and common extension tag names.
var tiffTagNames = map[uint16]string{
	254:   "NewSubfileType",
	256:   "ImageWidth",
	257:   "ImageLength",
	258:   "BitsPerSample",
	259:   "Compression",
	262:   "PhotometricInterpretation",
	266:   "FillOrder",
	269:   "DocumentName",
	270:   "ImageDescription",
	271:   "Make",
	272:   "Model",
	273:   "StripOffsets",
	274:   "Orientation",
	277:   "SamplesPerPixel",
	278:   "RowsPerStrip",
	279:   "StripByteCounts",
	282:   "XResolution",
	283:   "YResolution",
	284:   "PlanarConfiguration",
	296:   "ResolutionUnit",
	305:   "Software",
	306:   "DateTime",
	315:   "Artist",
	316:   "HostComputer",
	317:   "Predictor",
	320:   "ColorMap",
	322:   "TileWidth",
	323:   "TileLength",
	324:   "TileOffsets",
	325:   "TileByteCounts",
	338:   "ExtraSamples",
	339:   "SampleFormat",
	340:   "SMinSampleValue",
	341:   "SMaxSampleValue",
	33432: "Copyright",
	34665: "ExifIFD",
}

// tiffSkipped are offset tables that say nothing about the image.
var tiffSkipped = map[uint16]bool{273: true, 279: true, 324: true, 325: true, 320: true}

// TIFF reads the tags of the first image file directory.
func TIFF(r io.Reader, _ int64) (map[string]any, error) {
	t, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode tiff: %w", err)
	}
	tags := make(map[string]any)
	if len(t.Dirs) > 0 {
		for _, tg := range t.Dirs[0].Tags {
			if tiffSkipped[tg.Id] {
				continue
			}
			name, ok := tiffTagNames[tg.Id]
			if !ok {
				name = fmt.Sprintf("TAG_%d", tg.Id)
			}
			v, err := tiffValue(tg)
			if err != nil {
				continue
			}
			tags[name] = v
		}
	}
	return map[string]any{"tiff_tags": tags}, nil
}

func tiffValue(tg *tiff.Tag) (any, error) {
	n := int(tg.Count)
	switch tg.Format() {
	case tiff.StringVal:
		s, err := tg.StringVal()
		return strings.TrimRight(s, "\x00 "), err
	case tiff.IntVal:
		vals := make([]int64, n)
		for i := range vals {
			v, err := tg.Int64(i)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return single(vals), nil
	case tiff.FloatVal:
		vals := make([]float64, n)
		for i := range vals {
			v, err := tg.Float(i)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return single(vals), nil
	case tiff.RatVal:
		vals := make([]float64, n)
		for i := range vals {
			num, den, err := tg.Rat2(i)
			if err != nil {
				return nil, err
			}
			if den == 0 {
				vals[i] = 0
				continue
			}
			vals[i] = float64(num) / float64(den)
		}
		return single(vals), nil
	}
	return fmt.Sprintf("<%d bytes>", len(tg.Val)), nil
}
