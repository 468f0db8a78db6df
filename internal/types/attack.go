package types

import (
	"encoding/json"
	"fmt"
)

// AttackRecord is one classified network flow as held by the classification
// store. Field order matches the positional rows returned by
// GET /dados/ataques/novos; keep attackFieldCount in sync.
type AttackRecord struct {
	FlowID        string `json:"flow_id"`
	SrcIP         string `json:"src_ip"`
	DestIP        string `json:"dest_ip"`
	SrcPort       int    `json:"src_port"`
	DestPort      int    `json:"dest_port"`
	Proto         string `json:"proto"`
	Hour          int    `json:"hour"`
	Minute        int    `json:"minute"`
	Seconds       int    `json:"seconds"`
	Severity      int    `json:"severity"`
	PktsToServer  int64  `json:"pkts_toserver"`
	PktsToClient  int64  `json:"pkts_toclient"`
	BytesToServer int64  `json:"bytes_toserver"`
	BytesToClient int64  `json:"bytes_toclient"`
	Class         string `json:"class"`
	Processado    bool   `json:"processado"`
}

const attackFieldCount = 16

// AttackFromRow converts a positional row from the classification store into
// an AttackRecord. Numeric columns arrive as JSON numbers, the processed flag
// as 0/1.
func AttackFromRow(row []any) (AttackRecord, error) {
	if len(row) != attackFieldCount {
		return AttackRecord{}, NewParseError(
			fmt.Sprintf("attack row has %d columns, want %d", len(row), attackFieldCount), nil)
	}
	return AttackRecord{
		FlowID:        asString(row[0]),
		SrcIP:         asString(row[1]),
		DestIP:        asString(row[2]),
		SrcPort:       int(asInt(row[3])),
		DestPort:      int(asInt(row[4])),
		Proto:         asString(row[5]),
		Hour:          int(asInt(row[6])),
		Minute:        int(asInt(row[7])),
		Seconds:       int(asInt(row[8])),
		Severity:      int(asInt(row[9])),
		PktsToServer:  asInt(row[10]),
		PktsToClient:  asInt(row[11]),
		BytesToServer: asInt(row[12]),
		BytesToClient: asInt(row[13]),
		Class:         asString(row[14]),
		Processado:    asInt(row[15]) != 0,
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case bool:
		if n {
			return 1
		}
	}
	return 0
}

// Context is the situational summary the generative model produces for one
// attack. Wire field names follow the rule/context store's schema.
type Context struct {
	ID        string `json:"id,omitempty"`
	FlowID    string `json:"flow_id"`
	Tipo      string `json:"tipo"`
	Descricao string `json:"descricao"`
	Detalhes  string `json:"detalhes"`
}

// Validate checks the fields required before registration. Detalhes must be a
// non-empty string; nested structures are rejected at decode time.
func (c Context) Validate() error {
	if c.FlowID == "" {
		return NewValidationError("context missing flow_id")
	}
	if c.Tipo == "" {
		return NewValidationError("context missing tipo")
	}
	if c.Detalhes == "" {
		return NewValidationError("context missing detalhes")
	}
	return nil
}

// Rule tipo values accepted by the rule store.
const (
	RuleFirewall = "firewall"
	RuleIDS      = "ids"
	RuleIPS      = "ips"
)

// Rule is one executable mitigation action. Comando may hold several
// semicolon-joined shell commands. AtaqueID lists the flow_ids the rule
// addresses, in batch order.
type Rule struct {
	ID        string   `json:"id,omitempty"`
	Tipo      string   `json:"tipo"`
	Descricao string   `json:"descricao"`
	Comando   string   `json:"comando"`
	AtaqueID  []string `json:"ataque_id,omitempty"`
}

// Validate checks the closed tipo set and required fields.
func (r Rule) Validate() error {
	switch r.Tipo {
	case RuleFirewall, RuleIDS, RuleIPS:
	default:
		return NewValidationError(fmt.Sprintf("rule tipo %q not in {firewall, ids, ips}", r.Tipo))
	}
	if r.Descricao == "" {
		return NewValidationError("rule missing descricao")
	}
	if r.Comando == "" {
		return NewValidationError("rule missing comando")
	}
	return nil
}

// TrustedDevice is an IP excluded from any mitigation action.
type TrustedDevice struct {
	IP string `json:"ip_protegido"`
}

// DecodeContexts decodes an extracted model payload into contexts. A single
// object and an array of objects are both accepted. Items whose detalhes is
// not a plain string, or that are not objects at all, are dropped
// individually; their errors are returned alongside the survivors.
func DecodeContexts(raw json.RawMessage) ([]Context, []error) {
	items := splitItems(raw)
	contexts := make([]Context, 0, len(items))
	var dropped []error
	for i, item := range items {
		var aux struct {
			FlowID    string          `json:"flow_id"`
			Tipo      string          `json:"tipo"`
			Descricao string          `json:"descricao"`
			Detalhes  json.RawMessage `json:"detalhes"`
		}
		if err := json.Unmarshal(item, &aux); err != nil {
			dropped = append(dropped, NewValidationError(fmt.Sprintf("context %d is not an object: %v", i, err)))
			continue
		}
		var detalhes string
		if err := json.Unmarshal(aux.Detalhes, &detalhes); err != nil {
			dropped = append(dropped, NewValidationError(fmt.Sprintf("context %d: detalhes must be a string", i)))
			continue
		}
		contexts = append(contexts, Context{
			FlowID:    aux.FlowID,
			Tipo:      aux.Tipo,
			Descricao: aux.Descricao,
			Detalhes:  detalhes,
		})
	}
	return contexts, dropped
}

// DecodeRules decodes an extracted model payload into rules, dropping
// malformed items individually.
func DecodeRules(raw json.RawMessage) ([]Rule, []error) {
	items := splitItems(raw)
	rules := make([]Rule, 0, len(items))
	var dropped []error
	for i, item := range items {
		var r Rule
		if err := json.Unmarshal(item, &r); err != nil {
			dropped = append(dropped, NewValidationError(fmt.Sprintf("rule %d is not an object: %v", i, err)))
			continue
		}
		rules = append(rules, r)
	}
	return rules, dropped
}

// splitItems normalizes a payload to a list of items: arrays are split,
// anything else is treated as a single item.
func splitItems(raw json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items
	}
	return []json.RawMessage{raw}
}
