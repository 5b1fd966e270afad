package wormfile

// Namespace is the XML namespace of a training-data document.
const Namespace = "http://www.cellprofiler.org/linked_files/schemas/UntangleWorms.xsd"

// RootElement is the document root element name.
const RootElement = "training-data"

// SchemaXSD is the schema a training-data document conforms to. The decoder
// in this package is the enforcing implementation; the schema text is kept
// for external validators and is served by the API.
const SchemaXSD = `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           targetNamespace="` + Namespace + `"
           xmlns="` + Namespace + `"
           elementFormDefault="qualified">
  <xs:element name="training-data">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="version" type="xs:positiveInteger"/>
        <xs:element name="min-area" type="xs:double"/>
        <xs:element name="max-area" type="xs:double"/>
        <xs:element name="cost-threshold" type="xs:double"/>
        <xs:element name="num-control-points" type="xs:positiveInteger"/>
        <xs:element name="max-skel-length" type="xs:decimal"/>
        <xs:element name="min-path-length" type="xs:decimal"/>
        <xs:element name="max-path-length" type="xs:decimal"/>
        <xs:element name="median-worm-area" type="xs:decimal"/>
        <xs:element name="max-radius" type="xs:decimal"/>
        <xs:element name="overlap-weight" type="xs:decimal"/>
        <xs:element name="leftover-weight" type="xs:decimal"/>
        <xs:element name="training-set-size" type="xs:positiveInteger"/>
        <xs:element name="mean-angles">
          <xs:complexType>
            <xs:sequence>
              <xs:element name="value" type="xs:double" minOccurs="0" maxOccurs="unbounded"/>
            </xs:sequence>
          </xs:complexType>
        </xs:element>
        <xs:element name="radii-from-training">
          <xs:complexType>
            <xs:sequence>
              <xs:element name="value" type="xs:double" minOccurs="0" maxOccurs="unbounded"/>
            </xs:sequence>
          </xs:complexType>
        </xs:element>
        <xs:element name="inv-angles-covariance-matrix">
          <xs:complexType>
            <xs:sequence>
              <xs:element name="values" minOccurs="0" maxOccurs="unbounded">
                <xs:complexType>
                  <xs:sequence>
                    <xs:element name="value" type="xs:double" minOccurs="0" maxOccurs="unbounded"/>
                  </xs:sequence>
                </xs:complexType>
              </xs:element>
            </xs:sequence>
          </xs:complexType>
        </xs:element>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>
`

// fieldKind distinguishes how an element's content is decoded.
type fieldKind int

const (
	kindDouble fieldKind = iota // xs:double or xs:decimal scalar
	kindPositiveInt             // xs:positiveInteger scalar
	kindVector                  // sequence of <value> doubles
	kindMatrix                  // sequence of <values> rows of <value> doubles
)

// field is one entry in the declared element sequence.
type field struct {
	name string
	kind fieldKind
}

// schemaSequence is the strict element order the schema declares. Every
// element is required and appears exactly once.
var schemaSequence = []field{
	{"version", kindPositiveInt},
	{"min-area", kindDouble},
	{"max-area", kindDouble},
	{"cost-threshold", kindDouble},
	{"num-control-points", kindPositiveInt},
	{"max-skel-length", kindDouble},
	{"min-path-length", kindDouble},
	{"max-path-length", kindDouble},
	{"median-worm-area", kindDouble},
	{"max-radius", kindDouble},
	{"overlap-weight", kindDouble},
	{"leftover-weight", kindDouble},
	{"training-set-size", kindPositiveInt},
	{"mean-angles", kindVector},
	{"radii-from-training", kindVector},
	{"inv-angles-covariance-matrix", kindMatrix},
}

// fieldIndex maps element names to their position in schemaSequence.
var fieldIndex = func() map[string]int {
	m := make(map[string]int, len(schemaSequence))
	for i, f := range schemaSequence {
		m[f.name] = i
	}
	return m
}()
