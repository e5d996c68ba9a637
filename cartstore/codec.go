// cartstore/codec.go

package cartstore

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// PersistMode selects what a mutation writes to storage.
type PersistMode string

const (
	// PersistMutation writes the mutation's input: the add candidate, or the
	// single updated item for increment and decrement.
	PersistMutation PersistMode = "mutation"
	// PersistSnapshot writes the whole list after every mutation.
	PersistSnapshot PersistMode = "snapshot"
)

// ParsePersistMode validates a configured mode name.
func ParsePersistMode(s string) (PersistMode, error) {
	switch m := PersistMode(s); m {
	case PersistMutation, PersistSnapshot:
		return m, nil
	case "":
		return PersistMutation, nil
	}
	return "", errors.Errorf("unknown persist mode %q", s)
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "encode cart payload")
	}
	return string(b), nil
}

// storedItem tells an absent quantity apart from zero.
type storedItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
	Quantity *int    `json:"quantity"`
}

func (s storedItem) lineItem() LineItem {
	q := 1
	if s.Quantity != nil {
		q = *s.Quantity
	}
	return LineItem{ID: s.ID, Title: s.Title, ImageURL: s.ImageURL, Price: s.Price, Quantity: q}
}

// decode reads either a full list or the single object a mutation wrote. A blank
// payload is treated like an absent key.
// A single object without a quantity is an add candidate and counts as one unit.
func decode(payload string) ([]LineItem, error) {
	data := bytes.TrimSpace([]byte(payload))
	if len(data) == 0 {
		return []LineItem{}, nil
	}

	var stored []storedItem
	if len(data) > 0 && data[0] == '{' {
		var one storedItem
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, errors.Wrapf(ErrCorruptPayload, "decode item: %v", err)
		}
		stored = []storedItem{one}
	} else if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrapf(ErrCorruptPayload, "decode list: %v", err)
	}

	items := make([]LineItem, 0, len(stored))
	for _, s := range stored {
		item := s.lineItem()
		if item.Quantity < 0 {
			return nil, errors.Wrapf(ErrCorruptPayload, "item %q has negative quantity %d", item.ID, item.Quantity)
		}
		// Duplicate ids merge into the first occurrence.
		if i := indexOf(items, item.ID); i >= 0 {
			items[i].Quantity += item.Quantity
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
