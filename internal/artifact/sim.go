package artifact

import (
	"archive/zip"
	"bytes"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
	"github.com/saladfingers379/RIS-SIONNA/internal/gridalign"
)

// Heatmap is viewer/heatmap.json (spec.md §4.5): the canonical grid plus
// the metric sampled on it.
type Heatmap struct {
	Metric      string         `json:"metric"`
	GridShape   [2]int         `json:"grid_shape"`
	Values      [][]float64    `json:"values"`
	CellCenters [][][3]float64 `json:"cell_centers"`
	Center      [3]float64     `json:"center"`
	Size        [2]float64     `json:"size"`
	CellSize    [2]float64     `json:"cell_size"`
	Orientation [3]float64     `json:"orientation"`
}

// NewHeatmap builds a Heatmap from the aligned grid and per-cell values.
func NewHeatmap(metric string, grid *gridalign.Grid, values [][]float64) *Heatmap {
	rows, cols := len(values), 0
	if rows > 0 {
		cols = len(values[0])
	}
	return &Heatmap{
		Metric:      metric,
		GridShape:   [2]int{rows, cols},
		Values:      values,
		CellCenters: grid.CellCenters,
		Center:      grid.Center,
		Size:        grid.Size,
		CellSize:    grid.CellSize,
		Orientation: grid.OrientationRad,
	}
}

// Marker is one device position rendered in viewer/markers.json.
type Marker struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Position [3]float64 `json:"position"`
}

// PathInteraction is one bounce/scatter/reflect event along a ray path.
type PathInteraction struct {
	Type     string     `json:"type"`
	Position [3]float64 `json:"position"`
}

// Path is one polyline of viewer/paths.json, carrying the per-path
// attributes spec.md §4.5 names explicitly.
type Path struct {
	PathID       string             `json:"path_id"`
	Points       [][3]float64       `json:"points"`
	Order        int                `json:"order"`
	Type         string             `json:"type"`
	PathLengthM  float64            `json:"path_length_m"`
	DelaySeconds float64            `json:"delay_s"`
	PowerDB      float64            `json:"power_db"`
	Interactions []PathInteraction  `json:"interactions"`
}

// SceneManifest is viewer/scene_manifest.json: the static geometry
// inventory a run's scene resolved to.
type SceneManifest struct {
	SceneName string   `json:"scene_name"`
	Objects   []string `json:"objects"`
	BoundsMin [3]float64 `json:"bounds_min"`
	BoundsMax [3]float64 `json:"bounds_max"`
}

// SimSummary is the sim-run summary.json.
type SimSummary struct {
	RunID      string  `json:"run_id"`
	Profile    string  `json:"profile"`
	Scene      string  `json:"scene"`
	DurationMS int64   `json:"duration_ms"`
	VRAMGuard  *bool   `json:"vram_guard_applied,omitempty"`
	Status     string  `json:"status"`
}

// WriteHeatmap renders both viewer/heatmap.json and viewer/heatmap.npz.
func (w *Writer) WriteHeatmap(h *Heatmap) error {
	if err := w.writeJSON("viewer/heatmap.json", h); err != nil {
		return err
	}
	npz, err := encodeHeatmapNPZ(h)
	if err != nil {
		return err
	}
	return w.writeBytes("viewer/heatmap.npz", npz)
}

// encodeHeatmapNPZ packs values.npy and cell_centers.npy into an
// uncompressed zip archive, the on-disk layout numpy's savez produces.
func encodeHeatmapNPZ(h *Heatmap) ([]byte, error) {
	valuesNPY, err := encodeNPY2D(h.Values)
	if err != nil {
		return nil, err
	}
	var rows, cols int
	if len(h.CellCenters) > 0 {
		rows = len(h.CellCenters)
		cols = len(h.CellCenters[0])
	}
	flatCenters := make([][]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			p := h.CellCenters[r][c]
			flatCenters = append(flatCenters, []float64{p[0], p[1], p[2]})
		}
	}
	centersNPY, err := encodeNPY2D(flatCenters)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, payload := range map[string][]byte{"values.npy": valuesNPY, "cell_centers.npy": centersNPY} {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "create npz entry "+name, err)
		}
		if _, err := fw.Write(payload); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "write npz entry "+name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "close npz archive", err)
	}
	return buf.Bytes(), nil
}

// WriteMarkers renders viewer/markers.json.
func (w *Writer) WriteMarkers(markers []Marker) error {
	return w.writeJSON("viewer/markers.json", struct {
		Markers []Marker `json:"markers"`
	}{markers})
}

// WritePaths renders viewer/paths.json.
func (w *Writer) WritePaths(paths []Path) error {
	return w.writeJSON("viewer/paths.json", struct {
		Paths []Path `json:"paths"`
	}{paths})
}

// WriteSceneManifest renders viewer/scene_manifest.json.
func (w *Writer) WriteSceneManifest(m *SceneManifest) error {
	return w.writeJSON("viewer/scene_manifest.json", m)
}

// WriteSimSummary renders summary.json for a sim run.
func (w *Writer) WriteSimSummary(s *SimSummary) error {
	return w.writeJSON("summary.json", s)
}

// WritePlotPNG atomically replaces plots/<name>.png with caller-rendered
// image bytes (rendering itself lives in internal/render).
func (w *Writer) WritePlotPNG(name string, png []byte) error {
	return w.writeBytes("plots/"+name+".png", png)
}

// WriteDataCSV atomically replaces data/<name>.csv.
func (w *Writer) WriteDataCSV(name string, csv []byte) error {
	return w.writeBytes("data/"+name+".csv", csv)
}

// WriteDataNPZ atomically replaces data/<name>.npz with a zipped set of
// named float64 arrays.
func (w *Writer) WriteDataNPZ(name string, arrays map[string][]float64) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for arrName, vals := range arrays {
		payload, err := encodeNPY1D(vals)
		if err != nil {
			return err
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: arrName + ".npy", Method: zip.Store})
		if err != nil {
			return apperr.Wrap(apperr.KindIO, "create npz entry", err)
		}
		if _, err := fw.Write(payload); err != nil {
			return apperr.Wrap(apperr.KindIO, "write npz entry", err)
		}
	}
	if err := zw.Close(); err != nil {
		return apperr.Wrap(apperr.KindIO, "close npz archive", err)
	}
	return w.writeBytes("data/"+name+".npz", buf.Bytes())
}
