package mapio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
)

// WritePCD writes cloud as an ASCII PCD. rgb and normal fields are emitted
// when any point carries them.
func WritePCD(w io.Writer, cloud l1geom.PointCloud) error {
	var hasColor, hasNormal bool
	for _, p := range cloud.Points {
		hasColor = hasColor || p.HasColor
		hasNormal = hasNormal || p.HasNormal
	}
	fields := []string{"x", "y", "z"}
	if hasColor {
		fields = append(fields, "rgb")
	}
	if hasNormal {
		fields = append(fields, "normal_x", "normal_y", "normal_z")
	}
	n := len(fields)
	repeat := func(s string) string { return strings.TrimSpace(strings.Repeat(s+" ", n)) }

	bw := bufio.NewWriter(w)
	bw.WriteString("# .PCD v0.7 - Point Cloud Data file format\n")
	fmt.Fprintf(bw, "VERSION 0.7\nFIELDS %s\nSIZE %s\nTYPE %s\nCOUNT %s\n",
		strings.Join(fields, " "), repeat("4"), repeat("F"), repeat("1"))
	fmt.Fprintf(bw, "WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA ascii\n",
		len(cloud.Points), len(cloud.Points))

	for _, p := range cloud.Points {
		line := []string{ff(p.X), ff(p.Y), ff(p.Z)}
		if hasColor {
			c := uint32(p.R)<<16 | uint32(p.G)<<8 | uint32(p.B)
			line = append(line, strconv.FormatFloat(float64(math.Float32frombits(c)), 'g', -1, 32))
		}
		if hasNormal {
			line = append(line, ff(float64(p.NormalX)), ff(float64(p.NormalY)), ff(float64(p.NormalZ)))
		}
		if _, err := bw.WriteString(strings.Join(line, " ") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 32) }

// SavePCD writes cloud to path.
func SavePCD(path string, cloud l1geom.PointCloud) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WritePCD(f, cloud); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
