package export

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"

	"agrarkarte/internal/geom"

	"github.com/paulmach/orb"
)

const labelOffset = 0.0005 // 度，避免 CV/GRB 标注与地块标注重叠

type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	NS       string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description"`
	Styles      []kmlStyle     `xml:"Style"`
	Placemarks  []kmlPlacemark `xml:"Placemark"`
}

type kmlStyle struct {
	ID         string        `xml:"id,attr"`
	IconStyle  *kmlIconStyle `xml:"IconStyle,omitempty"`
	LineStyle  *kmlLineStyle `xml:"LineStyle,omitempty"`
	PolyStyle  *kmlPolyStyle `xml:"PolyStyle,omitempty"`
	LabelStyle kmlLabelStyle `xml:"LabelStyle"`
}

type kmlIconStyle struct {
	Href  string `xml:"Icon>href"`
	Scale int    `xml:"scale"`
}

type kmlLineStyle struct {
	Color string `xml:"color"`
	Width int    `xml:"width"`
}

type kmlPolyStyle struct {
	Color   string `xml:"color"`
	Outline int    `xml:"outline"`
}

type kmlLabelStyle struct {
	Color string  `xml:"color"`
	Scale float64 `xml:"scale"`
}

type kmlPlacemark struct {
	Name          string            `xml:"name"`
	StyleURL      string            `xml:"styleUrl"`
	Description   string            `xml:"description"`
	Point         *kmlCoords        `xml:"Point,omitempty"`
	Polygon       *kmlPolygon       `xml:"Polygon,omitempty"`
	MultiGeometry *kmlMultiGeometry `xml:"MultiGeometry,omitempty"`
}

type kmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer kmlCoords   `xml:"outerBoundaryIs>LinearRing"`
	Inner []kmlCoords `xml:"innerBoundaryIs>LinearRing"`
}

type kmlMultiGeometry struct {
	Polygons []kmlPolygon `xml:"Polygon"`
}

// 颜色按 KML 约定为 aabbggrr
var kmlStyles = []kmlStyle{
	{ID: "fieldStyle", LineStyle: &kmlLineStyle{"ffeb6325", 2}, PolyStyle: &kmlPolyStyle{"33eb6325", 1}, LabelStyle: kmlLabelStyle{"ffb29108", 1.1}},
	{ID: "cvStyle", LineStyle: &kmlLineStyle{"cc00a5ff", 2}, PolyStyle: &kmlPolyStyle{"1a00a5ff", 1}, LabelStyle: kmlLabelStyle{"ff00a5ff", 0.9}},
	{ID: "grbStyle", LineStyle: &kmlLineStyle{"cc0000ff", 2}, PolyStyle: &kmlPolyStyle{"1a0000ff", 1}, LabelStyle: kmlLabelStyle{"ff0000ff", 0.8}},
	{ID: "fieldLabelStyle", IconStyle: &kmlIconStyle{}, LabelStyle: kmlLabelStyle{"ffb29108", 1.1}},
	{ID: "cvLabelStyle", IconStyle: &kmlIconStyle{}, LabelStyle: kmlLabelStyle{"ff00a5ff", 0.9}},
	{ID: "grbLabelStyle", IconStyle: &kmlIconStyle{}, LabelStyle: kmlLabelStyle{"ff0000ff", 0.8}},
}

// KMLFileName：下载文件名
func KMLFileName(prefix string) string {
	return "agrarkarte_" + NormalizePrefix(prefix) + "_GRB-CV.kml"
}

// 文档注释：导出地块与 CV/GRB 的 KML
// 背景：每个地块输出 <base>_Field、<base>_CV、<base>_GRB 三个面要素及各自的标注点；前缀为默认值 felder 时不拼接到名称中。
// 约束：无地块返回 ErrNoFeatures；所有地块都没有缓冲结果时返回 ErrNoBuffers，两者都在生成任何内容之前判定。
func KML(layers []*geom.Layer, prefix string) ([]byte, error) {
	es := collect(layers)
	if len(es) == 0 {
		return nil, ErrNoFeatures
	}
	hasBuffers := false
	for _, e := range es {
		if e.feature.HasBuffers() {
			hasBuffers = true
			break
		}
	}
	if !hasBuffers {
		return nil, ErrNoBuffers
	}

	prefix = NormalizePrefix(prefix)
	namePrefix := ""
	if prefix != defaultPrefix {
		namePrefix = prefix + "_"
	}
	doc := kmlDocument{
		Name:        "Agrarkarte " + prefix + " with GRB/CV",
		Description: "Agricultural fields with Ground Risk Buffer and Contingency Volume calculations",
		Styles:      kmlStyles,
	}
	for _, e := range es {
		fieldName := e.name
		if fieldName == "" {
			fieldName = unnamedField
		}
		base := ReplaceUmlauts(namePrefix + fieldName)
		doc.Placemarks = append(doc.Placemarks,
			shape(base+"_Field", "#fieldStyle", "Original field: "+fieldName, e.feature.Geometry),
			label(base+"_Field", "#fieldLabelStyle", "Field Label: "+fieldName, e.feature.Geometry, 0),
		)
		if cv := e.feature.ContingencyVolume; cv != nil {
			doc.Placemarks = append(doc.Placemarks,
				shape(base+"_CV", "#cvStyle", "Contingency Volume for field: "+fieldName, *cv),
				label(base+"_CV", "#cvLabelStyle", "CV Label: "+fieldName, *cv, labelOffset),
			)
		}
		if grb := e.feature.GroundRiskBuffer; grb != nil {
			doc.Placemarks = append(doc.Placemarks,
				shape(base+"_GRB", "#grbStyle", "Ground Risk Buffer for field: "+fieldName, *grb),
				label(base+"_GRB", "#grbLabelStyle", "GRB Label: "+fieldName, *grb, -labelOffset),
			)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(kmlRoot{NS: "http://www.opengis.net/kml/2.2", Document: doc}); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func shape(name, style, desc string, g geom.Geometry) kmlPlacemark {
	pm := kmlPlacemark{Name: name, StyleURL: style, Description: desc}
	switch w := toWGS84(g).(type) {
	case orb.Polygon:
		p := polygon(w)
		pm.Polygon = &p
	case orb.MultiPolygon:
		mg := &kmlMultiGeometry{}
		for _, p := range w {
			mg.Polygons = append(mg.Polygons, polygon(p))
		}
		pm.MultiGeometry = mg
	}
	return pm
}

func label(name, style, desc string, g geom.Geometry, offset float64) kmlPlacemark {
	c := toWGS84(g).Bound().Center()
	c[0] += offset
	c[1] += offset
	return kmlPlacemark{Name: name, StyleURL: style, Description: desc, Point: &kmlCoords{Coordinates: coord(c)}}
}

func polygon(p orb.Polygon) kmlPolygon {
	var out kmlPolygon
	for i, r := range p {
		cs := kmlCoords{Coordinates: ring(r)}
		if i == 0 {
			out.Outer = cs
			continue
		}
		out.Inner = append(out.Inner, cs)
	}
	return out
}

func ring(r orb.Ring) string {
	parts := make([]string, len(r))
	for i, pt := range r {
		parts[i] = coord(pt)
	}
	return strings.Join(parts, " ")
}

func coord(pt orb.Point) string {
	return strconv.FormatFloat(pt[0], 'f', -1, 64) + "," + strconv.FormatFloat(pt[1], 'f', -1, 64)
}
