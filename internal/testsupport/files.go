package testsupport

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"testing"
	"time"
)

// JPEGBytes encodes a solid width x height JPEG.
func JPEGBytes(t testing.TB, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: 0x42, G: 0x80, B: 0xc0, A: 0xff}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// JPEGWithEXIF returns a JPEG carrying GPS coordinates and a capture time in
// an APP1 Exif segment. taken is written in local wall-clock form.
func JPEGWithEXIF(t testing.TB, width, height int, lat, lon float64, taken time.Time) []byte {
	t.Helper()

	plain := JPEGBytes(t, width, height)
	tiff := exifTIFF(lat, lon, taken)

	segment := make([]byte, 0, len(tiff)+10)
	segment = append(segment, 0xFF, 0xE1)
	segment = binary.BigEndian.AppendUint16(segment, uint16(2+6+len(tiff)))
	segment = append(segment, 'E', 'x', 'i', 'f', 0, 0)
	segment = append(segment, tiff...)

	out := make([]byte, 0, len(plain)+len(segment))
	out = append(out, plain[:2]...)
	out = append(out, segment...)
	out = append(out, plain[2:]...)
	return out
}

const (
	tiffTypeASCII    = 2
	tiffTypeLong     = 4
	tiffTypeRational = 5
)

// exifTIFF lays out a little-endian TIFF with IFD0 (DateTime, GPS pointer)
// followed by a GPS IFD and its rational payloads.
func exifTIFF(lat, lon float64, taken time.Time) []byte {
	le := binary.LittleEndian
	const (
		ifd0Offset     = 8
		ifd0Size       = 2 + 2*12 + 4
		dateOffset     = ifd0Offset + ifd0Size
		dateLen        = 20
		gpsOffset      = dateOffset + dateLen
		gpsSize        = 2 + 4*12 + 4
		latValueOffset = gpsOffset + gpsSize
		lonValueOffset = latValueOffset + 24
		total          = lonValueOffset + 24
	)

	buf := make([]byte, total)
	copy(buf, "II")
	le.PutUint16(buf[2:], 42)
	le.PutUint32(buf[4:], ifd0Offset)

	entry := func(at int, tag, typ uint16, count, value uint32) {
		le.PutUint16(buf[at:], tag)
		le.PutUint16(buf[at+2:], typ)
		le.PutUint32(buf[at+4:], count)
		le.PutUint32(buf[at+8:], value)
	}
	inlineASCII := func(at int, tag uint16, s string) {
		le.PutUint16(buf[at:], tag)
		le.PutUint16(buf[at+2:], tiffTypeASCII)
		le.PutUint32(buf[at+4:], 2)
		copy(buf[at+8:at+12], s)
	}

	le.PutUint16(buf[ifd0Offset:], 2)
	entry(ifd0Offset+2, 0x0132, tiffTypeASCII, dateLen, dateOffset)
	entry(ifd0Offset+14, 0x8825, tiffTypeLong, 1, gpsOffset)
	copy(buf[dateOffset:], taken.Format("2006:01:02 15:04:05"))

	latRef, lonRef := "N", "E"
	if lat < 0 {
		latRef = "S"
	}
	if lon < 0 {
		lonRef = "W"
	}
	le.PutUint16(buf[gpsOffset:], 4)
	inlineASCII(gpsOffset+2, 0x0001, latRef)
	entry(gpsOffset+14, 0x0002, tiffTypeRational, 3, latValueOffset)
	inlineASCII(gpsOffset+26, 0x0003, lonRef)
	entry(gpsOffset+38, 0x0004, tiffTypeRational, 3, lonValueOffset)

	putDMS(buf[latValueOffset:], math.Abs(lat))
	putDMS(buf[lonValueOffset:], math.Abs(lon))
	return buf
}

func putDMS(dst []byte, value float64) {
	le := binary.LittleEndian
	deg := math.Floor(value)
	minutes := math.Floor((value - deg) * 60)
	seconds := ((value-deg)*60 - minutes) * 60
	le.PutUint32(dst[0:], uint32(deg))
	le.PutUint32(dst[4:], 1)
	le.PutUint32(dst[8:], uint32(minutes))
	le.PutUint32(dst[12:], 1)
	le.PutUint32(dst[16:], uint32(math.Round(seconds*10000)))
	le.PutUint32(dst[20:], 10000)
}
