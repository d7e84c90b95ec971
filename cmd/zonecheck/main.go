// zonecheck：对一个 GeoJSON 地块文件执行一轮区域查询，并以 JSON 输出聚合结果
//
// 用法：zonecheck <file.geojson>，或通过 ZONECHECK_INPUT 指定文件；ZONECHECK_CRS 覆盖声明的坐标系。
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agrarkarte/internal/ingest"
	"agrarkarte/internal/logger"
	"agrarkarte/internal/session"
	"agrarkarte/internal/utils"
	"agrarkarte/internal/zones"

	"github.com/joho/godotenv"
)

type report struct {
	Layer    session.LayerInfo `json:"layer"`
	Progress zones.Progress    `json:"progress"`
	Matches  int               `json:"matches"`
	Index    zones.Index       `json:"index"`
}

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	in := utils.Env("ZONECHECK_INPUT", "")
	if len(os.Args) > 1 {
		in = os.Args[1]
	}
	if in == "" {
		fmt.Fprintln(os.Stderr, "usage: zonecheck <file.geojson>")
		os.Exit(2)
	}
	if err := run(in, utils.Env("ZONECHECK_CRS", ""), utils.EnvSeconds("ZONECHECK_TIMEOUT_S", 10*time.Minute)); err != nil {
		l.Error("zonecheck_error", "input", in, "err", err)
		os.Exit(1)
	}
}

func run(path, crs string, timeout time.Duration) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rc := utils.OpenRedisFromEnv()
	if rc != nil {
		defer rc.Close()
	}
	cfg, err := session.ConfigFromEnv(rc)
	if err != nil {
		return err
	}
	st, err := session.New(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	st.SetQueryActive(false)
	info, err := st.AddLayer(ingest.Upload{Name: filepath.Base(path), CRS: crs, Data: data})
	if err != nil {
		return err
	}
	p := st.SetQueryActive(true)
	if p == nil {
		return errors.New("zone query did not start")
	}
	select {
	case <-p.Done():
	case <-time.After(timeout):
		return fmt.Errorf("zone pass %d did not finish within %s", p.Gen, timeout)
	}
	idx := st.ZoneIndex()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report{Layer: info, Progress: st.ZoneProgress(), Matches: idx.Count(), Index: idx})
}
