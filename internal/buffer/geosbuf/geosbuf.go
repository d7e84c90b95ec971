// 包 geosbuf：基于 GEOS 的平面缓冲实现
// 约束：依赖系统 libgeos（cgo）；几何经 WKB 往返，坐标单位与输入一致。
package geosbuf

import (
	"errors"
	"fmt"

	"agrarkarte/internal/buffer"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// DefaultQuadSegs：四分之一圆弧的线段数
const DefaultQuadSegs = 8

// Plane：平面外扩缓冲
type Plane struct {
	QuadSegs int
}

var _ buffer.Bufferer = Plane{}

// ErrGEOS：GEOS 调用失败（go-geos 以 panic 报告 GEOS 错误）
var ErrGEOS = errors.New("geosbuf: geos failure")

// 文档注释：缓冲单个几何
// 背景：GEOS 负责圆角外扩与自交合并；结果为空或非面状时返回错误，由上层跳过该要素。
// 约束：GEOS 的 panic 在此转换为 ErrGEOS，不向上传播。
func (p Plane) Buffer(g orb.Geometry, distance float64) (orb.Geometry, error) {
	qs := p.QuadSegs
	if qs <= 0 {
		qs = DefaultQuadSegs
	}
	in, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("geosbuf: encode: %w", err)
	}
	var res []byte
	if err := recoverGEOS(func() error {
		var err error
		res, err = bufferWKB(in, distance, qs)
		return err
	}); err != nil {
		return nil, err
	}
	out, err := wkb.Unmarshal(res)
	if err != nil {
		return nil, fmt.Errorf("geosbuf: decode: %w", err)
	}
	return out, nil
}

// recoverGEOS：执行 fn，并把其中的 panic 转为 ErrGEOS
func recoverGEOS(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrGEOS, r)
		}
	}()
	return fn()
}

func bufferWKB(in []byte, distance float64, quadSegs int) ([]byte, error) {
	src, err := geos.NewGeomFromWKB(in)
	if err != nil {
		return nil, fmt.Errorf("geosbuf: parse: %w", err)
	}
	defer src.Destroy()
	if src.IsEmpty() {
		return nil, buffer.ErrEmptyResult
	}
	res := src.Buffer(distance, quadSegs)
	defer res.Destroy()
	if res.IsEmpty() {
		return nil, buffer.ErrEmptyResult
	}
	switch res.TypeID() {
	case geos.TypeIDPolygon, geos.TypeIDMultiPolygon:
	default:
		return nil, fmt.Errorf("geosbuf: unexpected result type %s", res.Type())
	}
	return res.ToWKB(), nil
}
