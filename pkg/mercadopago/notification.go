package mercadopago

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind is the resource a notification is about.
type Kind int

const (
	KindUnknown Kind = iota
	KindPayment
	KindMerchantOrder
)

func (k Kind) String() string {
	switch k {
	case KindPayment:
		return "payment"
	case KindMerchantOrder:
		return "merchant_order"
	default:
		return "unknown"
	}
}

// Notification is the canonical form of every notification shape MercadoPago
// sends: webhooks (JSON body), IPN (query string) and legacy IPN bodies with a
// resource URL.
type Notification struct {
	Kind   Kind
	Action string
	// ID is the id of the notified resource, for payments the payment id.
	ID string
}

// IsPayment reports whether the notification carries a payment id to look up.
func (n Notification) IsPayment() bool {
	return n.Kind == KindPayment && n.ID != ""
}

// flexibleID accepts ids sent either as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

type rawNotification struct {
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Data     struct {
		ID flexibleID `json:"id"`
	} `json:"data"`
}

// ParseNotification normalises a notification from its raw body and query
// parameters. A body that is empty or not JSON is treated as an empty object.
// Shapes that cannot be recognised yield KindUnknown and should be ignored.
func ParseNotification(body []byte, query map[string]string) Notification {
	var raw rawNotification
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			raw = rawNotification{}
		}
	}

	n := Notification{Action: strings.TrimSpace(raw.Action)}

	topic := firstNonEmpty(raw.Type, raw.Topic, query["type"], query["topic"])
	switch strings.ToLower(strings.TrimSpace(topic)) {
	case "payment":
		n.Kind = KindPayment
	case "merchant_order", "topic_merchant_order_wh":
		n.Kind = KindMerchantOrder
	case "":
		if strings.HasPrefix(strings.ToLower(n.Action), "payment.") {
			n.Kind = KindPayment
		}
	}

	n.ID = DataID(body, query)
	if n.ID == "" {
		n.ID = lastPathSegment(raw.Resource)
	}

	if n.Kind == KindPayment && n.ID == "" {
		n.Kind = KindUnknown
	}
	return n
}

// DataID returns the notified resource id as MercadoPago uses it when signing
// a notification: the data.id query parameter, then the body's data.id, then
// the IPN id query parameter.
func DataID(body []byte, query map[string]string) string {
	if id := strings.TrimSpace(query["data.id"]); id != "" {
		return id
	}
	var raw rawNotification
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &raw) == nil {
		if id := strings.TrimSpace(string(raw.Data.ID)); id != "" {
			return id
		}
	}
	return strings.TrimSpace(query["id"])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func lastPathSegment(resource string) string {
	resource = strings.TrimRight(strings.TrimSpace(resource), "/")
	if resource == "" {
		return ""
	}
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		return resource[i+1:]
	}
	return resource
}
