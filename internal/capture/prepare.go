package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"fieldreport/internal/textutil"
)

type preparer struct {
	maxDimension int
	quality      int
	extractEXIF  bool
}

type prepared struct {
	data        []byte
	filename    string
	contentType string
	latitude    *float64
	longitude   *float64
	takenAt     time.Time
	width       int
	height      int
	resized     bool
}

// prepare fills location and capture time from EXIF when the front-end did not
// supply them, then shrinks oversized images. Payloads that are not decodable
// images pass through untouched.
func (p preparer) prepare(photo Photo) (prepared, error) {
	out := prepared{
		data:        photo.Data,
		filename:    textutil.SanitizeFileName(photo.Filename),
		contentType: strings.TrimSpace(photo.ContentType),
		latitude:    photo.Latitude,
		longitude:   photo.Longitude,
	}
	if out.contentType == "" {
		out.contentType = http.DetectContentType(photo.Data)
	}
	if out.filename == "" {
		out.filename = "report" + extensionFor(out.contentType)
	}

	if p.extractEXIF && out.contentType == "image/jpeg" {
		p.applyEXIF(&out)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(photo.Data))
	if err != nil {
		return out, nil
	}
	out.width, out.height = cfg.Width, cfg.Height
	if p.maxDimension <= 0 || (cfg.Width <= p.maxDimension && cfg.Height <= p.maxDimension) {
		return out, nil
	}

	img, err := imaging.Decode(bytes.NewReader(photo.Data), imaging.AutoOrientation(true))
	if err != nil {
		return out, fmt.Errorf("decode image: %w", err)
	}
	fitted := imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
	quality := p.quality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return out, fmt.Errorf("encode resized image: %w", err)
	}
	bounds := fitted.Bounds()
	out.data = buf.Bytes()
	out.contentType = "image/jpeg"
	out.filename = strings.TrimSuffix(out.filename, filepath.Ext(out.filename)) + ".jpg"
	out.width, out.height = bounds.Dx(), bounds.Dy()
	out.resized = true
	return out, nil
}

func (p preparer) applyEXIF(out *prepared) {
	x, err := exif.Decode(bytes.NewReader(out.data))
	if err != nil {
		return
	}
	if out.latitude == nil || out.longitude == nil {
		if lat, lon, err := x.LatLong(); err == nil {
			out.latitude, out.longitude = &lat, &lon
		}
	}
	if taken, err := x.DateTime(); err == nil {
		out.takenAt = taken
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}
