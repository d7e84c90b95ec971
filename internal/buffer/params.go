// 包 buffer：Contingency Volume 与 Ground Risk Buffer 的距离模型及缓冲计算
package buffer

import (
	"errors"
	"fmt"
	"math"
)

const (
	gravity = 9.81
	hBaro   = 1.0 // 气压高度误差
	sGPS    = 3.0
	sPOS    = 3.0
	sK      = 1.0 // 地图误差
	tanPhi  = 1.0 // 45° 坠落角
)

var ErrInvalidParameter = errors.New("buffer: parameter must be a finite value >= 0")

// Parameters：进程级缓冲参数
type Parameters struct {
	SpeedKmh                float64 `json:"speed_kmh"`
	CharacteristicDimension float64 `json:"characteristic_dimension"`
	FlightHeight            float64 `json:"flight_height"`
}

// DefaultParameters：36 km/h，3.25 m，100 m
func DefaultParameters() Parameters {
	return Parameters{SpeedKmh: 36, CharacteristicDimension: 3.25, FlightHeight: 100}
}

func checkValue(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s=%v", ErrInvalidParameter, name, v)
	}
	return nil
}

// Validate：所有参数须为有限非负数
func (p Parameters) Validate() error {
	if err := checkValue("speed_kmh", p.SpeedKmh); err != nil {
		return err
	}
	if err := checkValue("characteristic_dimension", p.CharacteristicDimension); err != nil {
		return err
	}
	return checkValue("flight_height", p.FlightHeight)
}

// Distances：一次缓冲计算的距离快照（米）
type Distances struct {
	SCV  float64 `json:"scv"`
	SGRB float64 `json:"sgrb"`
	HCV  float64 `json:"hcv"`
	HFG  float64 `json:"hfg"`
}

// 文档注释：由参数计算距离
// 背景：v0 = speed/3.6；hCV = H + hBaro + 0.7·v0 + v0²/(2g)；GRB = hCV + cd/2；
// sCV = sGPS + sPOS + sK + v0 + v0²/(2g·tanφ)。
func (p Parameters) Distances() Distances {
	v0 := p.SpeedKmh / 3.6
	hRZ := v0 * 0.7
	hCM := 0.5 * v0 * v0 / gravity
	hCV := p.FlightHeight + hBaro + hRZ + hCM
	sRZ := v0 * 1
	sCM := 0.5 * v0 * v0 / (gravity * tanPhi)
	return Distances{
		SCV:  sGPS + sPOS + sK + sRZ + sCM,
		SGRB: hCV + 0.5*p.CharacteristicDimension,
		HCV:  hCV,
		HFG:  p.FlightHeight,
	}
}

// ContingencyDistance：CV 外扩距离
func (d Distances) ContingencyDistance() float64 { return d.SCV }

// GroundRiskDistance：GRB 外扩距离，叠加在 CV 之上
func (d Distances) GroundRiskDistance() float64 { return d.SCV + d.SGRB }
