package receipt

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// ErrRasterInFlight is returned when a rasterization is already running for
// this output; the caller keeps the preview and simply does not get a
// second build.
var ErrRasterInFlight = fmt.Errorf("rasterization already in progress")

// RasterHandle owns one encoded bitmap. It must be released exactly once
// when superseded or when the owning session goes away.
type RasterHandle struct {
	mu       sync.Mutex
	data     []byte
	released bool
}

// PNG returns the encoded bitmap, or nil after release.
func (h *RasterHandle) PNG() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	return h.data
}

// Release frees the bitmap. Safe to call more than once; only the first
// call does anything.
func (h *RasterHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	h.data = nil
}

// rasterizeSVG decodes the vector form and draws it onto an off-screen
// bitmap of the same dimensions, then encodes the result. Replaceable in
// tests.
var rasterizeSVG = func(ctx context.Context, svgData []byte, size int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// IgnoreErrorMode: unsupported vector features degrade instead of
	// killing the whole build.
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vector receipt: %v", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode bitmap: %v", err)
	}
	return buf.Bytes(), nil
}

// Rasterize builds the bitmap form. Best-effort: a failure leaves the SVG
// preview fully usable, it only keeps share/download disabled. At most one
// build runs at a time per output; a previously issued handle is released
// when its replacement lands.
func (o *Output) Rasterize(ctx context.Context) (*RasterHandle, error) {
	o.mu.Lock()
	if o.building {
		o.mu.Unlock()
		return nil, ErrRasterInFlight
	}
	o.building = true
	o.mu.Unlock()

	// The guard clears no matter how the build ends.
	defer func() {
		o.mu.Lock()
		o.building = false
		o.mu.Unlock()
	}()

	data, err := rasterizeSVG(ctx, o.svgData, Size)
	if err != nil {
		return nil, err
	}

	handle := &RasterHandle{data: data}

	o.mu.Lock()
	if o.raster != nil {
		o.raster.Release()
	}
	o.raster = handle
	o.mu.Unlock()

	return handle, nil
}

// Raster returns the current bitmap handle, if a build has completed.
func (o *Output) Raster() (*RasterHandle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.raster == nil {
		return nil, false
	}
	return o.raster, true
}

// Close releases the current raster handle. Called when the owning session
// is removed.
func (o *Output) Close() {
	o.mu.Lock()
	handle := o.raster
	o.raster = nil
	o.mu.Unlock()
	if handle != nil {
		handle.Release()
	}
}
