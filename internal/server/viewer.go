package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kiesman99/deepzoom/internal/pyramid"
)

// viewerTemplate is an OpenSeadragon page pointed at the pyramid's DZI
// descriptor. Placeholders: title, width, height, max iterations,
// descriptor filename.
const viewerTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%[1]s</title>
    <script src="https://cdnjs.cloudflare.com/ajax/libs/openseadragon/4.1.0/openseadragon.min.js"></script>
    <style>
        body {
            margin: 0;
            padding: 0;
            font-family: Arial, sans-serif;
            background: #000;
        }
        #viewer {
            width: 100vw;
            height: 100vh;
            background: #000;
        }
        .info {
            position: absolute;
            top: 10px;
            left: 10px;
            background: rgba(0, 0, 0, 0.7);
            color: #fff;
            padding: 10px 15px;
            border-radius: 5px;
            font-size: 14px;
            z-index: 1000;
        }
    </style>
</head>
<body>
    <div class="info">
        %[1]s (%[2]d x %[3]d pixels, %[4]d iterations)<br>
        Use mouse wheel to zoom, drag to pan
    </div>
    <div id="viewer"></div>
    <script>
        OpenSeadragon({
            id: "viewer",
            prefixUrl: "https://cdnjs.cloudflare.com/ajax/libs/openseadragon/4.1.0/images/",
            tileSources: "%[5]s",
            showNavigationControl: true,
            navigationControlAnchor: OpenSeadragon.ControlAnchor.TOP_RIGHT,
            animationTime: 0.5,
            blendTime: 0.1,
            constrainDuringPan: false,
            maxZoomPixelRatio: 1000,
            minZoomLevel: 0.8,
            visibilityRatio: 1,
            zoomPerScroll: 1.2,
            timeout: 120000
        });
    </script>
</body>
</html>
`

// WriteViewer writes viewer.html next to the pyramid so the output
// directory can be served as-is.
func WriteViewer(dir, name string, d pyramid.Descriptor, maxIter int) error {
	page := fmt.Sprintf(viewerTemplate,
		name, d.Size.Width, d.Size.Height, maxIter, name+".dzi")
	if err := os.WriteFile(filepath.Join(dir, "viewer.html"), []byte(page), 0o644); err != nil {
		return fmt.Errorf("writing viewer page: %w", err)
	}
	return nil
}
