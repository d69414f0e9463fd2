package models

// PayloadKind tags the shape of a RawPayload.
type PayloadKind int

const (
	// PayloadNone carries nothing usable.
	PayloadNone PayloadKind = iota
	// PayloadRecords is a homogeneous sequence of map rows.
	PayloadRecords
	// PayloadItems is a sequence whose elements differ in shape.
	PayloadItems
	// PayloadRecord is a single map.
	PayloadRecord
	// PayloadText is unstructured text.
	PayloadText
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadRecords:
		return "records"
	case PayloadItems:
		return "items"
	case PayloadRecord:
		return "record"
	case PayloadText:
		return "text"
	default:
		return "none"
	}
}

// ItemKind tags one element of a heterogeneous sequence.
type ItemKind int

const (
	ItemScalar ItemKind = iota
	ItemRecord
	ItemList
)

// Item is one element of a PayloadItems sequence.
type Item struct {
	Kind   ItemKind
	Record *Record
	List   []any
	Scalar any
}

// RawPayload is what a vendor call produces once its job is done. Only the
// field matching Kind is meaningful.
type RawPayload struct {
	Kind    PayloadKind
	Records []*Record
	Items   []Item
	Record  *Record
	Text    string
}

// RecordsPayload wraps map rows.
func RecordsPayload(rows []*Record) RawPayload {
	return RawPayload{Kind: PayloadRecords, Records: rows}
}

// ItemsPayload wraps a heterogeneous sequence.
func ItemsPayload(items []Item) RawPayload {
	return RawPayload{Kind: PayloadItems, Items: items}
}

// RecordPayload wraps a single map.
func RecordPayload(r *Record) RawPayload {
	return RawPayload{Kind: PayloadRecord, Record: r}
}

// TextPayload wraps unstructured text.
func TextPayload(s string) RawPayload {
	return RawPayload{Kind: PayloadText, Text: s}
}

// Len reports how many top-level rows the payload carries.
func (p RawPayload) Len() int {
	switch p.Kind {
	case PayloadRecords:
		return len(p.Records)
	case PayloadItems:
		return len(p.Items)
	case PayloadRecord:
		return 1
	case PayloadText:
		if p.Text == "" {
			return 0
		}
		return 1
	default:
		return 0
	}
}

// PayloadOf classifies a decoded value (JSON or vendor-built) into the
// tagged union. This is the only place dynamic shape inspection happens.
func PayloadOf(v any) RawPayload {
	switch val := v.(type) {
	case RawPayload:
		return val
	case []*Record:
		return RecordsPayload(val)
	case *Record:
		return RecordPayload(val)
	case map[string]any:
		return RecordPayload(RecordFromMap(val))
	case string:
		return TextPayload(val)
	case []any:
		items := make([]Item, 0, len(val))
		homogeneous := true
		for _, elem := range val {
			item := ItemOf(elem)
			if item.Kind != ItemRecord {
				homogeneous = false
			}
			items = append(items, item)
		}
		if !homogeneous {
			return ItemsPayload(items)
		}
		rows := make([]*Record, 0, len(items))
		for _, item := range items {
			rows = append(rows, item.Record)
		}
		return RecordsPayload(rows)
	default:
		return RawPayload{Kind: PayloadNone}
	}
}

// ItemOf classifies one element of a decoded sequence.
func ItemOf(v any) Item {
	switch val := v.(type) {
	case *Record:
		return Item{Kind: ItemRecord, Record: val}
	case map[string]any:
		return Item{Kind: ItemRecord, Record: RecordFromMap(val)}
	case []any:
		return Item{Kind: ItemList, List: val}
	case []string:
		list := make([]any, len(val))
		for i, s := range val {
			list[i] = s
		}
		return Item{Kind: ItemList, List: list}
	default:
		return Item{Kind: ItemScalar, Scalar: val}
	}
}
