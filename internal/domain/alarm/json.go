package alarm

import (
	"encoding/json"
	"fmt"
)

// alarmDocument is the JSON shape of an alarm exchanged with the host platform.
type alarmDocument struct {
	ID           int                `json:"id"`
	ReductionKey string             `json:"reductionKey"`
	Severity     string             `json:"severity"`
	Acknowledged bool               `json:"acknowledged"`
	Type         string             `json:"type"`
	LogMessage   string             `json:"logMessage"`
	Node         *nodeDocument      `json:"node,omitempty"`
	LastEvent    *lastEventDocument `json:"lastEvent,omitempty"`
}

type nodeDocument struct {
	Label       string   `json:"label"`
	AssetRecord string   `json:"assetRecord"`
	MetaData    string   `json:"metaData"`
	Categories  []string `json:"categories"`
	IPAddresses []string `json:"ipAddresses"`
}

type lastEventDocument struct {
	UEI        string              `json:"uei"`
	Parameters []parameterDocument `json:"parameters"`
}

type parameterDocument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DecodeJSON parses a single alarm document.
func DecodeJSON(data []byte) (*Alarm, error) {
	var doc alarmDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode alarm: %w", err)
	}

	return doc.toDomain()
}

// EncodeJSON renders an alarm as a JSON document accepted by DecodeJSON.
func EncodeJSON(a *Alarm) ([]byte, error) {
	doc := alarmDocument{
		ID:           a.ID,
		ReductionKey: a.ReductionKey,
		Severity:     a.Severity.String(),
		Acknowledged: a.Acknowledged,
		Type:         a.Type.String(),
		LogMessage:   a.LogMessage,
	}

	if a.Node != nil {
		doc.Node = &nodeDocument{
			Label:       a.Node.Label,
			AssetRecord: a.Node.AssetRecord,
			MetaData:    a.Node.MetaData,
			Categories:  a.Node.Categories,
			IPAddresses: a.Node.IPAddresses,
		}
	}

	if a.LastEvent != nil {
		doc.LastEvent = &lastEventDocument{UEI: a.LastEvent.UEI}
		for _, p := range a.LastEvent.Parameters {
			doc.LastEvent.Parameters = append(doc.LastEvent.Parameters, parameterDocument(p))
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode alarm: %w", err)
	}

	return data, nil
}

func (d *alarmDocument) toDomain() (*Alarm, error) {
	if d.ReductionKey == "" {
		return nil, fmt.Errorf("alarm %d: %w", d.ID, ErrMissingReductionKey)
	}

	severity := SeverityIndeterminate
	if d.Severity != "" {
		var err error
		if severity, err = ParseSeverity(d.Severity); err != nil {
			return nil, fmt.Errorf("alarm %d: %w", d.ID, err)
		}
	}

	alarmType, err := ParseType(d.Type)
	if err != nil {
		return nil, fmt.Errorf("alarm %d: %w", d.ID, err)
	}

	result := &Alarm{
		ID:           d.ID,
		ReductionKey: d.ReductionKey,
		Severity:     severity,
		Acknowledged: d.Acknowledged,
		Type:         alarmType,
		LogMessage:   d.LogMessage,
	}

	if d.Node != nil {
		result.Node = &Node{
			Label:       d.Node.Label,
			AssetRecord: d.Node.AssetRecord,
			MetaData:    d.Node.MetaData,
			Categories:  d.Node.Categories,
			IPAddresses: d.Node.IPAddresses,
		}
	}

	if d.LastEvent != nil {
		result.LastEvent = &LastEvent{UEI: d.LastEvent.UEI}
		for _, p := range d.LastEvent.Parameters {
			result.LastEvent.Parameters = append(result.LastEvent.Parameters, Parameter(p))
		}
	}

	return result, nil
}
