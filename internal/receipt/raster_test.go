package receipt

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRasterizeProducesPNG(t *testing.T) {
	out := Render(sampleReceipt(), sampleProfile(), "https://guto.me/@okello", Theme{})

	handle, err := out.Rasterize(context.Background())
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	data := handle.PNG()
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("raster output is not a PNG")
	}

	got, ok := out.Raster()
	if !ok || got != handle {
		t.Error("Raster() does not return the built handle")
	}
}

func TestRasterizeGuardBlocksReentrantBuild(t *testing.T) {
	out := Render(sampleReceipt(), sampleProfile(), "https://guto.me/@okello", Theme{})

	started := make(chan struct{})
	release := make(chan struct{})
	inFlight := 0
	var mu sync.Mutex

	orig := rasterizeSVG
	rasterizeSVG = func(ctx context.Context, svgData []byte, size int) ([]byte, error) {
		mu.Lock()
		inFlight++
		if inFlight > 1 {
			mu.Unlock()
			t.Error("two rasterizations in flight")
			return nil, errors.New("overlap")
		}
		mu.Unlock()
		close(started)
		<-release
		mu.Lock()
		inFlight--
		mu.Unlock()
		return []byte("fake png"), nil
	}
	defer func() { rasterizeSVG = orig }()

	done := make(chan error, 1)
	go func() {
		_, err := out.Rasterize(context.Background())
		done <- err
	}()

	<-started
	// second build while the first is running must refuse, not compete
	if _, err := out.Rasterize(context.Background()); !errors.Is(err, ErrRasterInFlight) {
		t.Errorf("second Rasterize = %v, want ErrRasterInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Rasterize: %v", err)
	}

	// guard cleared: a fresh build is allowed again
	rasterizeSVG = func(ctx context.Context, svgData []byte, size int) ([]byte, error) {
		return []byte("fake png 2"), nil
	}
	if _, err := out.Rasterize(context.Background()); err != nil {
		t.Fatalf("Rasterize after guard clear: %v", err)
	}
}

func TestRasterizeGuardClearsOnFailure(t *testing.T) {
	out := Render(sampleReceipt(), sampleProfile(), "https://guto.me/@okello", Theme{})

	orig := rasterizeSVG
	rasterizeSVG = func(ctx context.Context, svgData []byte, size int) ([]byte, error) {
		return nil, errors.New("decode blew up")
	}
	defer func() { rasterizeSVG = orig }()

	if _, err := out.Rasterize(context.Background()); err == nil {
		t.Fatal("expected rasterization failure")
	}
	// preview must survive a failed build
	if len(out.SVG()) == 0 {
		t.Error("SVG preview lost after raster failure")
	}
	if _, ok := out.Raster(); ok {
		t.Error("raster handle present after failed build")
	}

	// guard cleared even though the build failed
	rasterizeSVG = func(ctx context.Context, svgData []byte, size int) ([]byte, error) {
		return []byte("fake png"), nil
	}
	if _, err := out.Rasterize(context.Background()); err != nil {
		t.Fatalf("Rasterize after failure: %v", err)
	}
}

func TestSupersededHandleIsReleased(t *testing.T) {
	out := Render(sampleReceipt(), sampleProfile(), "https://guto.me/@okello", Theme{})

	orig := rasterizeSVG
	rasterizeSVG = func(ctx context.Context, svgData []byte, size int) ([]byte, error) {
		return []byte("fake png"), nil
	}
	defer func() { rasterizeSVG = orig }()

	first, err := out.Rasterize(context.Background())
	if err != nil {
		t.Fatalf("first Rasterize: %v", err)
	}
	second, err := out.Rasterize(context.Background())
	if err != nil {
		t.Fatalf("second Rasterize: %v", err)
	}

	if first.PNG() != nil {
		t.Error("superseded handle still holds its bitmap")
	}
	if second.PNG() == nil {
		t.Error("current handle released prematurely")
	}

	out.Close()
	if second.PNG() != nil {
		t.Error("Close did not release the current handle")
	}
	// release is idempotent
	second.Release()
	first.Release()
}

func TestRasterizeHonorsCancellation(t *testing.T) {
	out := Render(sampleReceipt(), sampleProfile(), "https://guto.me/@okello", Theme{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := out.Rasterize(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Rasterize with cancelled ctx = %v, want context.Canceled", err)
	}
}
