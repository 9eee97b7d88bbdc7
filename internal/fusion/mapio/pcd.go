package mapio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/sensor.fusion/internal/fusion"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
)

// ErrUnsupportedPCD is returned for PCD features this reader does not handle.
var ErrUnsupportedPCD = errors.New("unsupported pcd")

const maxPCDPoints = 200_000_000

// initialPCDCap bounds the up-front allocation; POINTS comes from an
// untrusted header, so larger clouds grow through append.
const initialPCDCap = 1 << 20

type pcdField struct {
	name  string
	size  int
	typ   byte // 'F', 'I' or 'U'
	count int
}

type pcdHeader struct {
	fields []pcdField
	width  int
	height int
	points int
	data   string
}

// LoadPCD reads a PCD file into a cloud tagged with frame.
func LoadPCD(path, frame string) (l1geom.PointCloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return l1geom.PointCloud{}, fmt.Errorf("failed to open map %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return l1geom.PointCloud{}, fmt.Errorf("failed to stat map %s: %w", path, err)
	}

	cloud, err := readPCD(f, info.Size())
	if err != nil {
		return l1geom.PointCloud{}, fmt.Errorf("failed to read map %s: %w", path, err)
	}
	cloud.Frame = frame
	fusion.Opsf("loaded map %s: %d points in frame %q", path, len(cloud.Points), frame)
	return cloud, nil
}

// ReadPCD decodes a PCD stream. The returned cloud has no frame set.
func ReadPCD(r io.Reader) (l1geom.PointCloud, error) {
	return readPCD(r, -1)
}

// readPCD decodes a PCD stream of at most size bytes; size < 0 means unknown.
func readPCD(r io.Reader, size int64) (l1geom.PointCloud, error) {
	in := bufio.NewReader(r)
	h, err := readHeader(in)
	if err != nil {
		return l1geom.PointCloud{}, err
	}
	if h.data == "binary" && size >= 0 {
		if need := int64(h.points) * int64(h.stride()); need > size {
			return l1geom.PointCloud{}, fmt.Errorf("pcd declares %d points (%d bytes) but file is %d bytes", h.points, need, size)
		}
	}
	var pts []l1geom.Point
	switch h.data {
	case "ascii":
		pts, err = readASCII(in, h)
	case "binary":
		pts, err = readBinary(in, h)
	default:
		return l1geom.PointCloud{}, fmt.Errorf("%w: DATA %s", ErrUnsupportedPCD, h.data)
	}
	if err != nil {
		return l1geom.PointCloud{}, err
	}
	return l1geom.PointCloud{Points: pts}, nil
}

func readHeader(in *bufio.Reader) (*pcdHeader, error) {
	h := &pcdHeader{height: 1}
	var sizes, types, counts []string
	for h.data == "" {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("pcd header truncated: %w", err)
		}
		line, _, _ = strings.Cut(line, "#")
		key, value, _ := strings.Cut(strings.TrimSpace(line), " ")
		if key == "" {
			continue
		}
		tokens := strings.Fields(value)
		switch key {
		case "VERSION":
			if v := strings.TrimPrefix(value, "0"); v != ".7" {
				return nil, fmt.Errorf("%w: VERSION %s", ErrUnsupportedPCD, value)
			}
		case "FIELDS":
			h.fields = make([]pcdField, len(tokens))
			for i, t := range tokens {
				h.fields[i] = pcdField{name: t, size: 4, typ: 'F', count: 1}
			}
		case "SIZE":
			sizes = tokens
		case "TYPE":
			types = tokens
		case "COUNT":
			counts = tokens
		case "WIDTH":
			if h.width, err = strconv.Atoi(value); err != nil {
				return nil, fmt.Errorf("invalid WIDTH %q: %w", value, err)
			}
		case "HEIGHT":
			if h.height, err = strconv.Atoi(value); err != nil {
				return nil, fmt.Errorf("invalid HEIGHT %q: %w", value, err)
			}
		case "VIEWPOINT":
			// Map points are already expressed in the map frame.
		case "POINTS":
			if h.points, err = strconv.Atoi(value); err != nil {
				return nil, fmt.Errorf("invalid POINTS %q: %w", value, err)
			}
		case "DATA":
			h.data = value
		default:
			return nil, fmt.Errorf("unexpected pcd header line %q", line)
		}
	}
	if len(h.fields) == 0 {
		return nil, errors.New("pcd header has no FIELDS")
	}
	if err := h.applyColumns(sizes, types, counts); err != nil {
		return nil, err
	}
	if h.points == 0 {
		h.points = h.width * h.height
	}
	if h.points < 0 || h.points > maxPCDPoints {
		return nil, fmt.Errorf("invalid POINTS %d", h.points)
	}
	return h, nil
}

// stride is the byte length of one binary record.
func (h *pcdHeader) stride() int {
	n := 0
	for _, f := range h.fields {
		n += f.size * f.count
	}
	return n
}

func (h *pcdHeader) applyColumns(sizes, types, counts []string) error {
	for name, col := range map[string][]string{"SIZE": sizes, "TYPE": types, "COUNT": counts} {
		if col != nil && len(col) != len(h.fields) {
			return fmt.Errorf("pcd %s has %d entries for %d fields", name, len(col), len(h.fields))
		}
	}
	for i := range h.fields {
		f := &h.fields[i]
		if sizes != nil {
			n, err := strconv.Atoi(sizes[i])
			if err != nil {
				return fmt.Errorf("invalid SIZE %q: %w", sizes[i], err)
			}
			f.size = n
		}
		if types != nil {
			if len(types[i]) != 1 || !strings.Contains("FIU", types[i]) {
				return fmt.Errorf("invalid TYPE %q", types[i])
			}
			f.typ = types[i][0]
		}
		if counts != nil {
			n, err := strconv.Atoi(counts[i])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid COUNT %q", counts[i])
			}
			f.count = n
		}
		switch {
		case f.typ == 'F' && (f.size == 4 || f.size == 8):
		case f.typ != 'F' && (f.size == 1 || f.size == 2 || f.size == 4 || f.size == 8):
		default:
			return fmt.Errorf("%w: field %s type %c size %d", ErrUnsupportedPCD, f.name, f.typ, f.size)
		}
	}
	return nil
}

// assign stores the first element of a field into p. raw holds the exact
// bit pattern for rgb fields, which pack colour into float or uint storage.
func assign(p *l1geom.Point, name string, v float64, raw uint64) {
	switch name {
	case "x":
		p.X = v
	case "y":
		p.Y = v
	case "z":
		p.Z = v
	case "rgb", "rgba":
		c := uint32(raw)
		p.R, p.G, p.B = uint8(c>>16), uint8(c>>8), uint8(c)
		p.HasColor = true
	case "normal_x":
		p.NormalX, p.HasNormal = float32(v), true
	case "normal_y":
		p.NormalY, p.HasNormal = float32(v), true
	case "normal_z":
		p.NormalZ, p.HasNormal = float32(v), true
	}
}

func readASCII(in *bufio.Reader, h *pcdHeader) ([]l1geom.Point, error) {
	pts := make([]l1geom.Point, 0, min(h.points, initialPCDCap))
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for len(pts) < h.points && sc.Scan() {
		tokens := strings.Fields(sc.Text())
		if len(tokens) == 0 {
			continue
		}
		var p l1geom.Point
		col := 0
		for _, f := range h.fields {
			if col+f.count > len(tokens) {
				return nil, fmt.Errorf("pcd point %d: expected more columns than %d", len(pts), len(tokens))
			}
			tok := tokens[col]
			col += f.count
			v, raw, err := parseASCIIValue(tok, f)
			if err != nil {
				return nil, fmt.Errorf("pcd point %d field %s: %w", len(pts), f.name, err)
			}
			assign(&p, f.name, v, raw)
		}
		pts = append(pts, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(pts) != h.points {
		return nil, fmt.Errorf("pcd data truncated: got %d of %d points", len(pts), h.points)
	}
	return pts, nil
}

func parseASCIIValue(tok string, f pcdField) (float64, uint64, error) {
	switch f.typ {
	case 'F':
		bits := 64
		if f.size == 4 {
			bits = 32
		}
		v, err := strconv.ParseFloat(tok, bits)
		if err != nil {
			return 0, 0, err
		}
		if f.size == 4 {
			return v, uint64(math.Float32bits(float32(v))), nil
		}
		return v, math.Float64bits(v), nil
	case 'U':
		u, err := strconv.ParseUint(tok, 10, 64)
		return float64(u), u, err
	default:
		i, err := strconv.ParseInt(tok, 10, 64)
		return float64(i), uint64(i), err
	}
}

func readBinary(in *bufio.Reader, h *pcdHeader) ([]l1geom.Point, error) {
	rec := make([]byte, h.stride())
	pts := make([]l1geom.Point, 0, min(h.points, initialPCDCap))
	for i := 0; i < h.points; i++ {
		if _, err := io.ReadFull(in, rec); err != nil {
			return nil, fmt.Errorf("pcd data truncated at point %d: %w", i, err)
		}
		var p l1geom.Point
		off := 0
		for _, f := range h.fields {
			v, raw := decodeBinary(rec[off:off+f.size], f)
			assign(&p, f.name, v, raw)
			off += f.size * f.count
		}
		pts = append(pts, p)
	}
	return pts, nil
}

func decodeBinary(b []byte, f pcdField) (float64, uint64) {
	le := binary.LittleEndian
	var raw uint64
	switch f.size {
	case 1:
		raw = uint64(b[0])
	case 2:
		raw = uint64(le.Uint16(b))
	case 4:
		raw = uint64(le.Uint32(b))
	case 8:
		raw = le.Uint64(b)
	}
	switch f.typ {
	case 'F':
		if f.size == 4 {
			return float64(math.Float32frombits(uint32(raw))), raw
		}
		return math.Float64frombits(raw), raw
	case 'I':
		switch f.size {
		case 1:
			return float64(int8(raw)), raw
		case 2:
			return float64(int16(raw)), raw
		case 4:
			return float64(int32(raw)), raw
		}
		return float64(int64(raw)), raw
	default:
		return float64(raw), raw
	}
}
