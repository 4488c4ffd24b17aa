package baseline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format identifies a baseline document encoding
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatCBOR  Format = "cbor"
)

// Layer file suffixes wrapped around the document encoding
const (
	suffixAge  = ".age"
	suffixZstd = ".zst"
)

// layout describes how a baseline file is encoded on disk
type layout struct {
	format     Format
	compressed bool
	encrypted  bool
}

// parseLayout derives the layout from the file name. Layers are read from the
// outside in: "baseline.yaml.zst.age" is encrypted, then compressed, then YAML.
func parseLayout(path string) (layout, error) {
	var l layout
	name := strings.ToLower(filepath.Base(path))

	if strings.HasSuffix(name, suffixAge) {
		l.encrypted = true
		name = strings.TrimSuffix(name, suffixAge)
	}
	if strings.HasSuffix(name, suffixZstd) {
		l.compressed = true
		name = strings.TrimSuffix(name, suffixZstd)
	}

	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		l.format = FormatYAML
	case ".json":
		l.format = FormatJSON
	case ".jsonc":
		l.format = FormatJSONC
	case ".cbor":
		l.format = FormatCBOR
	default:
		return l, fmt.Errorf("cannot determine baseline format from %q", filepath.Base(path))
	}
	return l, nil
}

// cborEnc uses Core Deterministic Encoding so identical documents produce
// identical bytes. Times keep nanosecond precision.
var cborEnc cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano

	var err error
	cborEnc, err = opts.EncMode()
	if err != nil {
		panic("baseline: CBOR encoder initialization failed: " + err.Error())
	}
}

func decodeDocument(format Format, data []byte) (*Document, error) {
	var doc Document
	var err error

	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatJSONC:
		err = json.Unmarshal(jsonc.ToJSON(data), &doc)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &doc)
	default:
		err = fmt.Errorf("unknown baseline format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s baseline: %w", format, err)
	}
	return &doc, nil
}

func encodeDocument(format Format, doc *Document) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON, FormatJSONC:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatCBOR:
		return cborEnc.Marshal(doc)
	default:
		return nil, fmt.Errorf("unknown baseline format %q", format)
	}
}
