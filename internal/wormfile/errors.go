package wormfile

import (
	"fmt"
	"strings"
)

// ErrorCode identifies a class of structural violation in a training-data
// document.
type ErrorCode string

const (
	// ErrXMLParse indicates the document is not well-formed XML.
	ErrXMLParse ErrorCode = "xml-parse-error"
	// ErrWrongRoot indicates the root element is not training-data.
	ErrWrongRoot ErrorCode = "wrong-root-element"
	// ErrWrongNamespace indicates the root element namespace is wrong.
	ErrWrongNamespace ErrorCode = "wrong-namespace"
	// ErrMissingElement indicates a required element is absent.
	ErrMissingElement ErrorCode = "missing-element"
	// ErrDuplicateElement indicates a singleton element appears twice.
	ErrDuplicateElement ErrorCode = "duplicate-element"
	// ErrElementOrder indicates an element appears outside the declared
	// sequence order.
	ErrElementOrder ErrorCode = "element-order"
	// ErrUnexpectedElement indicates an element the schema does not declare.
	ErrUnexpectedElement ErrorCode = "unexpected-element"
	// ErrDatatypeInvalid indicates element text is not lexically valid for
	// its declared numeric type.
	ErrDatatypeInvalid ErrorCode = "datatype-invalid"
	// ErrNotPositive indicates a positiveInteger element holds a value
	// less than one.
	ErrNotPositive ErrorCode = "value-not-positive"
	// ErrRaggedMatrix indicates the covariance matrix rows differ in length.
	ErrRaggedMatrix ErrorCode = "ragged-matrix"
)

// FormatError describes one structural violation found while decoding.
type FormatError struct {
	Code    ErrorCode
	Element string
	Message string
}

func (e FormatError) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: element %q: %s", e.Code, e.Element, e.Message)
}

// FormatErrors is the full list of structural violations in a document.
// Decoding continues past recoverable violations so a caller sees every
// problem at once rather than one per attempt.
type FormatErrors []FormatError

func (es FormatErrors) Error() string {
	if len(es) == 0 {
		return "no format errors"
	}
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether any violation carries the given code.
func (es FormatErrors) Has(code ErrorCode) bool {
	for _, e := range es {
		if e.Code == code {
			return true
		}
	}
	return false
}
