package report

import (
	"bytes"
	"encoding/json"

	"github.com/IvanShishkin/tamperhound/pkg/models"
	"gopkg.in/yaml.v3"
)

// renderJSON generates a JSON report
func renderJSON(report *models.ScanReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// renderYAML generates a YAML report
func renderYAML(report *models.ScanReport) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
