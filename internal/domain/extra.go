package domain

import (
	"bytes"
	"encoding/json"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// Extra holds object members that have no typed field. They are written back
// after the typed fields, sorted by key.
type Extra map[string]json.RawMessage

var (
	inventoryKeys = jsonKeys(reflect.TypeFor[StationInventory]())
	recordKeys    = jsonKeys(reflect.TypeFor[TelemetricRecord]())
	mergedKeys    = jsonKeys(reflect.TypeFor[mergedTail]())
	snapshotKeys  = jsonKeys(reflect.TypeFor[snapshotTail]())
)

func jsonKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = true
	}
	return keys
}

// extraMembers returns the members of the object in data whose keys are not
// in any of known. Nil when there are none.
func extraMembers(data []byte, known ...map[string]bool) (Extra, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var out Extra
	for k, raw := range all {
		if isKnown(k, known) {
			continue
		}
		if out == nil {
			out = Extra{}
		}
		out[k] = raw
	}
	return out, nil
}

func isKnown(key string, known []map[string]bool) bool {
	for _, set := range known {
		if set[key] {
			return true
		}
	}
	return false
}

// without drops keys that another part of the object already writes.
func (e Extra) without(keys map[string]bool) Extra {
	if len(e) == 0 {
		return e
	}
	out := make(Extra, len(e))
	for k, v := range e {
		if !keys[k] {
			out[k] = v
		}
	}
	return out
}

// appendMembers splices extra members into the encoded object obj.
func appendMembers(obj []byte, extra Extra) ([]byte, error) {
	if len(extra) == 0 {
		return obj, nil
	}
	var buf bytes.Buffer
	buf.Write(obj[:len(obj)-1])
	first := bytes.Equal(bytes.TrimSpace(obj), []byte("{}"))
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// joinObjects concatenates the members of two encoded objects.
func joinObjects(head, tail []byte) []byte {
	head = bytes.TrimSpace(head)
	tail = bytes.TrimSpace(tail)
	switch {
	case len(head) <= 2:
		return tail
	case len(tail) <= 2:
		return head
	}
	out := make([]byte, 0, len(head)+len(tail))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	return append(out, tail[1:]...)
}

// MarshalJSON writes the typed columns followed by any extra ones.
func (s StationInventory) MarshalJSON() ([]byte, error) {
	type plain StationInventory
	b, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	return appendMembers(b, s.Extra)
}

// UnmarshalJSON reads the typed columns and keeps the rest in Extra.
func (s *StationInventory) UnmarshalJSON(data []byte) error {
	type plain StationInventory
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraMembers(data, inventoryKeys)
	if err != nil {
		return err
	}
	*s = StationInventory(p)
	s.Extra = extra
	return nil
}

// MarshalJSON writes the typed fields followed by any extra ones.
func (r TelemetricRecord) MarshalJSON() ([]byte, error) {
	type plain TelemetricRecord
	b, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	return appendMembers(b, r.Extra)
}

// UnmarshalJSON reads the typed fields and keeps the rest in Extra.
func (r *TelemetricRecord) UnmarshalJSON(data []byte) error {
	type plain TelemetricRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraMembers(data, recordKeys)
	if err != nil {
		return err
	}
	*r = TelemetricRecord(p)
	r.Extra = extra
	return nil
}

type mergedTail struct {
	Data            string             `json:"data"`
	Dados           []TelemetricRecord `json:"dados"`
	DataAtualizacao Value              `json:"Data_Atualizacao"`
	DataHoraMedicao Value              `json:"Data_Hora_Medicao"`
	ChuvaAcumulada  *float64           `json:"chuvaAcumulada,omitempty"`
}

// MarshalJSON writes the inventory columns, then the merged fields. Merged
// fields win over inventory columns of the same name.
func (m MergedStation) MarshalJSON() ([]byte, error) {
	inv := m.StationInventory
	inv.Extra = inv.Extra.without(mergedKeys)
	head, err := json.Marshal(inv)
	if err != nil {
		return nil, err
	}
	tail, err := json.Marshal(mergedTail{
		Data:            m.Data,
		Dados:           m.Dados,
		DataAtualizacao: m.DataAtualizacao,
		DataHoraMedicao: m.DataHoraMedicao,
		ChuvaAcumulada:  m.ChuvaAcumulada,
	})
	if err != nil {
		return nil, err
	}
	return joinObjects(head, tail), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (m *MergedStation) UnmarshalJSON(data []byte) error {
	var tail mergedTail
	if err := json.Unmarshal(data, &tail); err != nil {
		return err
	}
	var inv StationInventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return err
	}
	inv.Extra = inv.Extra.without(mergedKeys)
	if len(inv.Extra) == 0 {
		inv.Extra = nil
	}
	*m = MergedStation{
		StationInventory: inv,
		Data:             tail.Data,
		Dados:            tail.Dados,
		DataAtualizacao:  tail.DataAtualizacao,
		DataHoraMedicao:  tail.DataHoraMedicao,
		ChuvaAcumulada:   tail.ChuvaAcumulada,
	}
	return nil
}

type snapshotTail struct {
	Data              string             `json:"data"`
	Dados             []TelemetricRecord `json:"dados"`
	HistoricoChuva24h []HistoricalRecord `json:"historicoChuva24h"`
	DataHoraMedicao   Value              `json:"Data_Hora_Medicao"`
	DataAtualizacao   Value              `json:"Data_Atualizacao"`
}

// MarshalJSON writes the inventory columns, then the snapshot fields.
func (s SnapshotStation) MarshalJSON() ([]byte, error) {
	inv := s.StationInventory
	inv.Extra = inv.Extra.without(snapshotKeys)
	head, err := json.Marshal(inv)
	if err != nil {
		return nil, err
	}
	tail, err := json.Marshal(snapshotTail{
		Data:              s.Data,
		Dados:             s.Dados,
		HistoricoChuva24h: s.HistoricoChuva24h,
		DataHoraMedicao:   s.DataHoraMedicao,
		DataAtualizacao:   s.DataAtualizacao,
	})
	if err != nil {
		return nil, err
	}
	return joinObjects(head, tail), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *SnapshotStation) UnmarshalJSON(data []byte) error {
	var tail snapshotTail
	if err := json.Unmarshal(data, &tail); err != nil {
		return err
	}
	var inv StationInventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return err
	}
	inv.Extra = inv.Extra.without(snapshotKeys)
	if len(inv.Extra) == 0 {
		inv.Extra = nil
	}
	*s = SnapshotStation{
		StationInventory:  inv,
		Data:              tail.Data,
		Dados:             tail.Dados,
		HistoricoChuva24h: tail.HistoricoChuva24h,
		DataHoraMedicao:   tail.DataHoraMedicao,
		DataAtualizacao:   tail.DataAtualizacao,
	}
	return nil
}
