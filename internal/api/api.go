// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"agrarkarte/internal/display"
	"agrarkarte/internal/export"
	"agrarkarte/internal/ingest"
	"agrarkarte/internal/logger"
	"agrarkarte/internal/ringedit"
	"agrarkarte/internal/session"
	"agrarkarte/internal/zones"

	"github.com/gorilla/mux"
)

// maxUploadBytes：单次上传的最大字节数
const maxUploadBytes = 32 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// 文档注释：错误到 HTTP 状态码的映射
// 约束：被拒绝的编辑 409；对象或命中不存在 404；输入错误 400；导出与查询前置条件 412；其余 500。
func statusOf(err error) int {
	switch {
	case errors.Is(err, ringedit.ErrExteriorFloor), errors.Is(err, ringedit.ErrExteriorRing), errors.Is(err, ringedit.ErrHoleTooSmall):
		return http.StatusConflict
	case errors.Is(err, session.ErrLayerNotFound), errors.Is(err, session.ErrFeatureNotFound),
		errors.Is(err, session.ErrNoVertexHit), errors.Is(err, session.ErrNoFeatureHit):
		return http.StatusNotFound
	case errors.Is(err, ringedit.ErrAddress), errors.Is(err, session.ErrInvalidParameter), errors.Is(err, zones.ErrUnknownLayer),
		errors.Is(err, ingest.ErrSchema), errors.Is(err, ingest.ErrCRS), errors.Is(err, ingest.ErrNoPolygons):
		return http.StatusBadRequest
	case errors.Is(err, export.ErrNoFeatures), errors.Is(err, export.ErrNoBuffers), errors.Is(err, zones.ErrNoLayers):
		return http.StatusPreconditionFailed
	case errors.Is(err, zones.ErrNoEndpoint):
		return http.StatusServiceUnavailable
	case errors.Is(err, zones.ErrHTTPStatus):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("api_error", "path", r.URL.Path, "err", err)
	} else {
		logger.L().Debug("api_reject", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(session.ErrInvalidParameter, err)
	}
	return nil
}

func intVar(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		return 0, errors.Join(session.ErrInvalidParameter, err)
	}
	return n, nil
}

func floatQuery(r *http.Request, name string) (float64, error) {
	v, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil {
		return 0, errors.Join(session.ErrInvalidParameter, err)
	}
	return v, nil
}

// Handler：持有会话与显示端的 HTTP 处理器
type Handler struct {
	st   *session.State
	view *display.Memory
	hub  *Hub
}

// 文档注释：构建并返回 API 路由
// 背景：路由相对于 API 基础路径注册，由主入口通过 StripPrefix 挂载；view 为 nil 时不提供 /display。
func BuildRoutes(st *session.State, view *display.Memory, hub *Hub) *mux.Router {
	h := &Handler{st: st, view: view, hub: hub}
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	r.HandleFunc("/layers", h.listLayers).Methods(http.MethodGet)
	r.HandleFunc("/layers", h.upload).Methods(http.MethodPost)
	r.HandleFunc("/layers/{id}", h.getLayer).Methods(http.MethodGet)
	r.HandleFunc("/layers/{id}", h.removeLayer).Methods(http.MethodDelete)
	r.HandleFunc("/layers/{id}/active", h.setActive).Methods(http.MethodPut)

	vertex := "/layers/{id}/features/{feature}/parts/{part}/rings/{ring}/vertices/{vertex}"
	r.HandleFunc(vertex, h.deleteVertex).Methods(http.MethodDelete)
	r.HandleFunc(vertex, h.moveVertex).Methods(http.MethodPut)
	r.HandleFunc("/layers/{id}/features/{feature}/parts/{part}/rings/{ring}", h.deleteRing).Methods(http.MethodDelete)
	r.HandleFunc("/holes", h.insertHole).Methods(http.MethodPost)
	r.HandleFunc("/pointer/click", h.click).Methods(http.MethodPost)
	r.HandleFunc("/pointer/drag", h.drag).Methods(http.MethodPost)
	r.HandleFunc("/simplify", h.simplify).Methods(http.MethodPost)
	r.HandleFunc("/vertices", h.showVertices).Methods(http.MethodPut)

	r.HandleFunc("/buffer/parameters", h.getParameters).Methods(http.MethodGet)
	r.HandleFunc("/buffer/parameters", h.setParameters).Methods(http.MethodPut)
	r.HandleFunc("/buffers", h.computeBuffers).Methods(http.MethodPost)
	r.HandleFunc("/buffers", h.clearBuffers).Methods(http.MethodDelete)

	r.HandleFunc("/zones/query", h.getQuery).Methods(http.MethodGet)
	r.HandleFunc("/zones/query", h.setQuery).Methods(http.MethodPut)
	r.HandleFunc("/zones/stride", h.setStride).Methods(http.MethodPut)
	r.HandleFunc("/zones/catalog", h.catalog).Methods(http.MethodGet)
	r.HandleFunc("/zones/layers/{name}", h.setZoneLayer).Methods(http.MethodPut)
	r.HandleFunc("/zones/recompute", h.recompute).Methods(http.MethodPost)
	r.HandleFunc("/zones/progress", h.progress).Methods(http.MethodGet)
	r.HandleFunc("/zones/matches", h.matches).Methods(http.MethodGet)
	r.HandleFunc("/zones/index", h.index).Methods(http.MethodGet)
	r.HandleFunc("/zones/markers", h.markers).Methods(http.MethodGet)
	r.HandleFunc("/zones/info", h.info).Methods(http.MethodGet)

	r.HandleFunc("/export/geojson", h.exportGeoJSON).Methods(http.MethodGet)
	r.HandleFunc("/export/kml", h.exportKML).Methods(http.MethodGet)

	if view != nil {
		r.HandleFunc("/display", h.display).Methods(http.MethodGet)
	}
	r.HandleFunc("/session", h.clear).Methods(http.MethodDelete)
	if hub != nil {
		r.HandleFunc("/events", hub.HandleWebSocket).Methods(http.MethodGet)
	}
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "layers": len(h.st.Layers())})
}
