package codec

// LineSerializer turns documents into JSON Lines records.
type LineSerializer struct {
	json JSON
}

// NewLineSerializer creates a serializer using j; a nil j means StdJSON.
func NewLineSerializer(j JSON) *LineSerializer {
	return &LineSerializer{json: orDefault(j)}
}

// Serialize encodes doc as one JSON object followed by '\n'.
func (s *LineSerializer) Serialize(doc *Document) ([]byte, error) {
	return s.AppendLine(nil, doc)
}

// AppendLine appends the encoded line for doc to dst. dst may be reused
// between calls to avoid allocations.
func (s *LineSerializer) AppendLine(dst []byte, doc *Document) ([]byte, error) {
	out, err := appendObject(dst, s.json, doc)
	if err != nil {
		return dst, err
	}
	return append(out, '\n'), nil
}
