package wormfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/wormlab/untangle/internal/worm"
)

// Encode writes p as a training-data document in the schema's declared
// element order. Doubles are written with the shortest representation that
// parses back to the identical bit pattern, so Encode followed by Decode
// is lossless.
//
// Encode does not run semantic validation; callers producing new records
// should validate first.
func Encode(w io.Writer, p *worm.TrainingParams) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, `<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintf(bw, "<%s xmlns=%q>\n", RootElement, Namespace)

	writeInt(bw, "version", p.Version)
	writeDouble(bw, "min-area", p.MinArea)
	writeDouble(bw, "max-area", p.MaxArea)
	writeDouble(bw, "cost-threshold", p.CostThreshold)
	writeInt(bw, "num-control-points", p.NumControlPoints)
	writeDouble(bw, "max-skel-length", p.MaxSkelLength)
	writeDouble(bw, "min-path-length", p.MinPathLength)
	writeDouble(bw, "max-path-length", p.MaxPathLength)
	writeDouble(bw, "median-worm-area", p.MedianWormArea)
	writeDouble(bw, "max-radius", p.MaxRadius)
	writeDouble(bw, "overlap-weight", p.OverlapWeight)
	writeDouble(bw, "leftover-weight", p.LeftoverWeight)
	writeInt(bw, "training-set-size", p.TrainingSetSize)

	writeVector(bw, "mean-angles", p.MeanAngles)
	writeVector(bw, "radii-from-training", p.Radii)

	fmt.Fprintln(bw, "  <inv-angles-covariance-matrix>")
	for _, row := range p.InvAnglesCovariance {
		fmt.Fprintln(bw, "    <values>")
		for _, v := range row {
			fmt.Fprintf(bw, "      <value>%s</value>\n", formatDouble(v))
		}
		fmt.Fprintln(bw, "    </values>")
	}
	fmt.Fprintln(bw, "  </inv-angles-covariance-matrix>")

	fmt.Fprintf(bw, "</%s>\n", RootElement)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("encode training data: %w", err)
	}
	return nil
}

// EncodeBytes renders p to a byte slice.
func EncodeBytes(p *worm.TrainingParams) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatDouble(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeDouble(w io.Writer, name string, v float64) {
	fmt.Fprintf(w, "  <%s>%s</%s>\n", name, formatDouble(v), name)
}

func writeInt(w io.Writer, name string, v int) {
	fmt.Fprintf(w, "  <%s>%d</%s>\n", name, v, name)
}

func writeVector(w io.Writer, name string, vals []float64) {
	fmt.Fprintf(w, "  <%s>\n", name)
	for _, v := range vals {
		fmt.Fprintf(w, "    <value>%s</value>\n", formatDouble(v))
	}
	fmt.Fprintf(w, "  </%s>\n", name)
}
