package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"agrarkarte/internal/buffer"
	"agrarkarte/internal/export"
	"agrarkarte/internal/geom"
	"agrarkarte/internal/ingest"
	"agrarkarte/internal/session"
	"agrarkarte/internal/zones"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb"
)

type activeBody struct {
	Active bool `json:"active"`
}

type pointBody struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p pointBody) point() orb.Point { return orb.Point{p.X, p.Y} }

type dragBody struct {
	From pointBody `json:"from"`
	To   pointBody `json:"to"`
}

type holeBody struct {
	Coordinates orb.Ring `json:"coordinates"`
}

type passBody struct {
	Generation uint64         `json:"generation,omitempty"`
	Progress   zones.Progress `json:"progress"`
}

func (h *Handler) passResult(p *zones.Pass) passBody {
	out := passBody{Progress: h.st.ZoneProgress()}
	if p != nil {
		out.Generation = p.Gen
	}
	return out
}

func (h *Handler) listLayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.st.Layers())
}

// upload：请求体为 GeoJSON；name 与 crs 通过查询参数传入
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
		return
	}
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		name = "upload.geojson"
	}
	info, err := h.st.AddLayer(ingest.Upload{Name: name, CRS: q.Get("crs"), Data: data})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *Handler) getLayer(w http.ResponseWriter, r *http.Request) {
	info, err := h.st.Layer(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) removeLayer(w http.ResponseWriter, r *http.Request) {
	if err := h.st.RemoveLayer(mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var b activeBody
	if err := decode(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.st.SetLayerActive(id, b.Active); err != nil {
		writeError(w, r, err)
		return
	}
	info, err := h.st.Layer(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// address：从路径解析要素定位与 (部件, 环, 顶点) 地址；withVertex 为 false 时不解析顶点
func address(r *http.Request, withVertex bool) (geom.FeatureRef, geom.VertexRef, error) {
	ref := geom.FeatureRef{Layer: mux.Vars(r)["id"]}
	var v geom.VertexRef
	var err error
	if ref.Feature, err = intVar(r, "feature"); err != nil {
		return ref, v, err
	}
	if v.Part, err = intVar(r, "part"); err != nil {
		return ref, v, err
	}
	if v.Ring, err = intVar(r, "ring"); err != nil {
		return ref, v, err
	}
	if withVertex {
		if v.Vertex, err = intVar(r, "vertex"); err != nil {
			return ref, v, err
		}
	}
	return ref, v, nil
}

func (h *Handler) deleteVertex(w http.ResponseWriter, r *http.Request) {
	ref, v, err := address(r, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.st.DeleteVertex(ref, v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) moveVertex(w http.ResponseWriter, r *http.Request) {
	ref, v, err := address(r, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var b pointBody
	if err := decode(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.st.MoveVertex(ref, v, b.point())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) deleteRing(w http.ResponseWriter, r *http.Request) {
	ref, v, err := address(r, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.st.DeleteRing(ref, v.Part, v.Ring)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) insertHole(w http.ResponseWriter, r *http.Request) {
	var b holeBody
	if err := decode(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.st.InsertHole(b.Coordinates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) click(w http.ResponseWriter, r *http.Request) {
	var b pointBody
	if err := decode(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.st.ClickVertex(b.point())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) drag(w http.ResponseWriter, r *http.Request) {
	var b dragBody
	if err := decode(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.st.DragVertex(b.From.point(), b.To.point())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// simplify：tolerance 缺省时使用会话默认容差
func (h *Handler) simplify(w http.ResponseWriter, r *http.Request) {
	tol := 0.0
	if s := r.URL.Query().Get("tolerance"); s != "" {
		v, err := floatQuery(r, "tolerance")
		if err != nil {
			writeError(w, r, err)
			return
		}
		tol = v
	}
	writeJSON(w, http.StatusOK, h.st.Simplify(tol))
}

func (h *Handler) showVertices(w http.ResponseWriter, r *http.Request) {
	var b struct {
		Show bool `json:"show"`
	}
	if err := decode(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	h.st.ShowVertices(b.Show)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getParameters(w http.ResponseWriter, r *http.Request) {
	p, d := h.st.BufferParameters()
	writeJSON(w, http.StatusOK, map[string]any{"parameters": p, "distances": d})
}

func (h *Handler) setParameters(w http.ResponseWriter, r *http.Request) {
	p, _ := h.st.BufferParameters()
	if err := decode(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.st.SetBufferParameters(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"parameters": p, "distances": d})
}

func (h *Handler) computeBuffers(w http.ResponseWriter, r *http.Request) {
	rep, err := h.st.ComputeBuffers(r.URL.Query().Get("layer"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) clearBuffers(w http.ResponseWriter, r *http.Request) {
	h.st.ClearBuffers()
	_, d := h.st.BufferParameters()
	writeJSON(w, http.StatusOK, buffer.Report{Distances: d})
}

func (h *Handler) getQuery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active":   h.st.QueryActive(),
		"stride":   h.st.Stride(),
		"progress": h.st.ZoneProgress(),
	})
}

func (h *Handler) setQuery(w http.ResponseWriter, r *http.Request) {
	var b activeBody
	if err := decode(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.passResult(h.st.SetQueryActive(b.Active)))
}

func (h *Handler) setStride(w http.ResponseWriter, r *http.Request) {
	var b struct {
		Stride int `json:"stride"`
	}
	if err := decode(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.st.SetStride(b.Stride)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.passResult(p))
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	cat, enabled := h.st.ZoneCatalog()
	writeJSON(w, http.StatusOK, map[string]any{"groups": cat.Groups, "enabled": enabled})
}

func (h *Handler) setZoneLayer(w http.ResponseWriter, r *http.Request) {
	var b struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.st.SetZoneLayer(mux.Vars(r)["name"], b.Enabled)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.passResult(p))
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, h.passResult(h.st.Recompute()))
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.st.ZoneProgress())
}

func (h *Handler) matches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.st.ZoneMatches())
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.st.ZoneIndex())
}

func (h *Handler) markers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.st.ZoneMarkers())
}

// info：x/y 为 EPSG:3857 坐标；视图分辨率由 res（米/像素）或 zoom 给出，都缺省时取轮次分辨率
func (h *Handler) info(w http.ResponseWriter, r *http.Request) {
	x, err := floatQuery(r, "x")
	if err != nil {
		writeError(w, r, err)
		return
	}
	y, err := floatQuery(r, "y")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := viewResolution(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recs, err := h.st.ZoneInfo(r.Context(), orb.Point{x, y}, res)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func attachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("content-type", contentType)
	w.Header().Set("content-disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("cache-control", "no-store")
	_, _ = w.Write(body)
}

func (h *Handler) exportGeoJSON(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	withBuffers, _ := strconv.ParseBool(q.Get("buffers"))
	prefix := q.Get("prefix")
	b, err := h.st.ExportGeoJSON(export.GeoJSONOptions{Prefix: prefix, IncludeBuffers: withBuffers})
	if err != nil {
		writeError(w, r, err)
		return
	}
	attachment(w, "application/geo+json", export.NormalizePrefix(prefix)+".geojson", b)
}

func (h *Handler) exportKML(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	b, err := h.st.ExportKML(prefix)
	if err != nil {
		writeError(w, r, err)
		return
	}
	attachment(w, "application/vnd.google-earth.kml+xml", export.KMLFileName(prefix), b)
}

func (h *Handler) display(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view.View()
	body := map[string]any{"layers": h.view.Layers()}
	if ok {
		body["view"] = [4]float64{view.Min[0], view.Min[1], view.Max[0], view.Max[1]}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	h.st.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

func viewResolution(r *http.Request) (float64, error) {
	q := r.URL.Query()
	switch {
	case q.Get("res") != "":
		res, err := floatQuery(r, "res")
		if err == nil && res <= 0 {
			err = session.ErrInvalidParameter
		}
		return res, err
	case q.Get("zoom") != "":
		z, err := strconv.Atoi(q.Get("zoom"))
		if err != nil || z < 0 || z > 30 {
			return 0, errors.Join(session.ErrInvalidParameter, err)
		}
		return zones.ResolutionForZoom(z), nil
	}
	return 0, nil
}
