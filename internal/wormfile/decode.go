package wormfile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wormlab/untangle/internal/worm"
)

// errNestedElement signals a child element inside a scalar leaf.
var errNestedElement = errors.New("nested element in scalar content")

// Decode reads a training-data document and returns the record it holds.
// The decoder enforces the schema's structural contract: the exact element
// sequence, singleton cardinality, and numeric lexical types. Recoverable
// violations are collected so the returned FormatErrors lists every problem
// in the document; a malformed XML stream aborts immediately.
//
// Semantic invariants (area ordering, vector lengths, matrix definiteness)
// are deliberately out of scope here; see worm.TrainingParams.Validate.
func Decode(r io.Reader) (*worm.TrainingParams, error) {
	dec := &decoder{xml: xml.NewDecoder(r)}
	p, err := dec.run()
	if err != nil {
		return nil, err
	}
	if len(dec.errs) > 0 {
		return nil, dec.errs
	}
	return p, nil
}

// DecodeAndValidate decodes a document and then checks the semantic
// invariants on the result.
func DecodeAndValidate(r io.Reader) (*worm.TrainingParams, error) {
	p, err := Decode(r)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("semantic validation: %w", err)
	}
	return p, nil
}

type decoder struct {
	xml  *xml.Decoder
	errs FormatErrors
}

func (d *decoder) addError(code ErrorCode, element, format string, args ...any) {
	d.errs = append(d.errs, FormatError{
		Code:    code,
		Element: element,
		Message: fmt.Sprintf(format, args...),
	})
}

func (d *decoder) run() (*worm.TrainingParams, error) {
	root, err := d.findRoot()
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, d.errs
	}

	var p worm.TrainingParams
	seen := make([]bool, len(schemaSequence))
	lastIdx := -1

	for {
		tok, err := d.xml.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, FormatErrors{{Code: ErrXMLParse, Message: err.Error()}}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			idx, known := fieldIndex[name]
			if !known {
				d.addError(ErrUnexpectedElement, name, "not declared by the schema")
				if err := d.xml.Skip(); err != nil {
					return nil, FormatErrors{{Code: ErrXMLParse, Message: err.Error()}}
				}
				continue
			}
			if seen[idx] {
				d.addError(ErrDuplicateElement, name, "declared as a singleton")
				if err := d.xml.Skip(); err != nil {
					return nil, FormatErrors{{Code: ErrXMLParse, Message: err.Error()}}
				}
				continue
			}
			if idx < lastIdx {
				d.addError(ErrElementOrder, name, "appears after %q, schema declares a strict sequence",
					schemaSequence[lastIdx].name)
			} else {
				lastIdx = idx
			}
			seen[idx] = true
			if err := d.decodeField(&p, schemaSequence[idx], t); err != nil {
				return nil, FormatErrors{{Code: ErrXMLParse, Message: err.Error()}}
			}

		case xml.EndElement:
			// End of the root element.
			for i, s := range seen {
				if !s {
					d.addError(ErrMissingElement, schemaSequence[i].name, "required element is absent")
				}
			}
			d.checkMatrixShape(&p)
			return &p, nil
		}
	}

	return nil, FormatErrors{{Code: ErrXMLParse, Message: "unexpected end of document"}}
}

// findRoot scans to the document's root start element and checks its name
// and namespace. A wrong root name is unrecoverable; a wrong namespace is
// recorded and decoding continues.
func (d *decoder) findRoot() (*xml.StartElement, error) {
	for {
		tok, err := d.xml.Token()
		if err == io.EOF {
			return nil, FormatErrors{{Code: ErrXMLParse, Message: "document has no root element"}}
		}
		if err != nil {
			return nil, FormatErrors{{Code: ErrXMLParse, Message: err.Error()}}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != RootElement {
			return nil, FormatErrors{{
				Code:    ErrWrongRoot,
				Element: start.Name.Local,
				Message: fmt.Sprintf("root element must be %q", RootElement),
			}}
		}
		if start.Name.Space != Namespace {
			d.addError(ErrWrongNamespace, start.Name.Local,
				"namespace %q, want %q", start.Name.Space, Namespace)
		}
		return &start, nil
	}
}

func (d *decoder) decodeField(p *worm.TrainingParams, f field, start xml.StartElement) error {
	switch f.kind {
	case kindDouble:
		v, err := d.scalarDouble(f.name)
		if err != nil {
			return err
		}
		switch f.name {
		case "min-area":
			p.MinArea = v
		case "max-area":
			p.MaxArea = v
		case "cost-threshold":
			p.CostThreshold = v
		case "max-skel-length":
			p.MaxSkelLength = v
		case "min-path-length":
			p.MinPathLength = v
		case "max-path-length":
			p.MaxPathLength = v
		case "median-worm-area":
			p.MedianWormArea = v
		case "max-radius":
			p.MaxRadius = v
		case "overlap-weight":
			p.OverlapWeight = v
		case "leftover-weight":
			p.LeftoverWeight = v
		}

	case kindPositiveInt:
		v, err := d.scalarPositiveInt(f.name)
		if err != nil {
			return err
		}
		switch f.name {
		case "version":
			p.Version = v
		case "num-control-points":
			p.NumControlPoints = v
		case "training-set-size":
			p.TrainingSetSize = v
		}

	case kindVector:
		vals, err := d.vector(f.name)
		if err != nil {
			return err
		}
		switch f.name {
		case "mean-angles":
			p.MeanAngles = vals
		case "radii-from-training":
			p.Radii = vals
		}

	case kindMatrix:
		rows, err := d.matrix(f.name)
		if err != nil {
			return err
		}
		p.InvAnglesCovariance = rows
	}
	return nil
}

// textContent consumes the current element's character data up to its end
// tag. A nested element makes the content non-scalar.
func (d *decoder) textContent() (string, error) {
	var sb strings.Builder
	for {
		tok, err := d.xml.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			return strings.TrimSpace(sb.String()), nil
		case xml.StartElement:
			if err := d.xml.Skip(); err != nil {
				return "", err
			}
			return "", errNestedElement
		}
	}
}

func (d *decoder) scalarDouble(name string) (float64, error) {
	text, err := d.textContent()
	if errors.Is(err, errNestedElement) {
		d.addError(ErrDatatypeInvalid, name, "contains a child element, want numeric text")
		return d.drainScalar(name)
	}
	if err != nil {
		return 0, err
	}
	v, perr := strconv.ParseFloat(text, 64)
	if perr != nil {
		d.addError(ErrDatatypeInvalid, name, "%q is not a valid number", text)
		return 0, nil
	}
	return v, nil
}

func (d *decoder) scalarPositiveInt(name string) (int, error) {
	text, err := d.textContent()
	if errors.Is(err, errNestedElement) {
		d.addError(ErrDatatypeInvalid, name, "contains a child element, want integer text")
		_, derr := d.drainScalar(name)
		return 0, derr
	}
	if err != nil {
		return 0, err
	}
	v, perr := strconv.Atoi(text)
	if perr != nil {
		d.addError(ErrDatatypeInvalid, name, "%q is not a valid integer", text)
		return 0, nil
	}
	if v <= 0 {
		d.addError(ErrNotPositive, name, "positiveInteger must be at least 1, got %d", v)
		return 0, nil
	}
	return v, nil
}

// drainScalar consumes the remainder of a scalar element after a nested
// element was skipped inside it.
func (d *decoder) drainScalar(name string) (float64, error) {
	for {
		tok, err := d.xml.Token()
		if err != nil {
			return 0, err
		}
		switch tok.(type) {
		case xml.EndElement:
			return 0, nil
		case xml.StartElement:
			if err := d.xml.Skip(); err != nil {
				return 0, err
			}
		}
	}
}

// vector decodes a sequence of <value> doubles under the named element.
func (d *decoder) vector(name string) ([]float64, error) {
	vals := []float64{}
	for {
		tok, err := d.xml.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "value" {
				d.addError(ErrUnexpectedElement, t.Name.Local,
					"only <value> is declared inside %q", name)
				if err := d.xml.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			v, err := d.scalarDouble(name + "/value")
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		case xml.EndElement:
			return vals, nil
		}
	}
}

// matrix decodes a sequence of <values> row blocks under the named element.
func (d *decoder) matrix(name string) ([][]float64, error) {
	rows := [][]float64{}
	for {
		tok, err := d.xml.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "values" {
				d.addError(ErrUnexpectedElement, t.Name.Local,
					"only <values> is declared inside %q", name)
				if err := d.xml.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			row, err := d.vector(name + "/values")
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		case xml.EndElement:
			return rows, nil
		}
	}
}

// checkMatrixShape flags ragged covariance rows. Squareness against the
// feature dimension is a semantic check and stays in Validate.
func (d *decoder) checkMatrixShape(p *worm.TrainingParams) {
	if len(p.InvAnglesCovariance) == 0 {
		return
	}
	want := len(p.InvAnglesCovariance[0])
	for i, row := range p.InvAnglesCovariance {
		if len(row) != want {
			d.addError(ErrRaggedMatrix, "inv-angles-covariance-matrix",
				"row %d has %d entries, row 0 has %d", i, len(row), want)
			return
		}
	}
}
